package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/damoang/angple-messenger/internal/broadcast"
	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/domain"
	"github.com/damoang/angple-messenger/internal/handler"
	"github.com/damoang/angple-messenger/internal/hook"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/internal/migration"
	"github.com/damoang/angple-messenger/internal/repository"
	"github.com/damoang/angple-messenger/internal/service"
	"github.com/damoang/angple-messenger/pkg/i18n"
	"github.com/damoang/angple-messenger/pkg/jwt"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const apiPrefix = "/api/v1/messenger"

type envelope struct {
	Data    json.RawMessage   `json:"data"`
	Meta    json.RawMessage   `json:"meta"`
	Message string            `json:"message"`
	Error   *common.ErrorInfo `json:"error"`
}

type stubUploads struct{}

func (stubUploads) Store(_ context.Context, req service.AttachmentRequest) ([]domain.Attachment, error) {
	out := make([]domain.Attachment, 0, len(req.Files))
	for _, f := range req.Files {
		out = append(out, domain.Attachment{FileName: f.FileName, MimeType: f.MimeType, Size: f.Size, URL: "/uploads/" + f.FileName})
	}
	return out, nil
}

// RoutesTestSuite HTTP 어댑터 통합 테스트
type RoutesTestSuite struct {
	suite.Suite

	router   *gin.Engine
	jwt      *jwt.Manager
	recorder *broadcast.Recorder
	healthy  error
}

func TestRoutesTestSuite(t *testing.T) {
	suite.Run(t, new(RoutesTestSuite))
}

func (s *RoutesTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	s.Require().NoError(err)
	sqlDB, err := db.DB()
	s.Require().NoError(err)
	sqlDB.SetMaxOpenConns(1)
	s.T().Cleanup(func() { _ = sqlDB.Close() })
	s.Require().NoError(migration.Run(db))

	s.recorder = broadcast.NewRecorder()
	s.healthy = nil
	engine := service.NewConversationEngine(service.EngineDeps{
		Conversations: repository.NewConversationRepository(db),
		Messages:      repository.NewMessageRepository(db),
		Statuses:      repository.NewStatusRepository(db),
		Transactor:    repository.NewTransactor(db),
		Hooks:         hook.NewRegistry(zerolog.Nop()),
		Broadcaster:   broadcast.NewBroadcaster(s.recorder, true, zerolog.Nop()),
		Attachments:   stubUploads{},
		ActorKeyKind:  domain.ActorKeyInt,
		Editing:       service.EditPolicy{Enabled: true, TimeLimit: time.Hour, MarkAsEdited: true},
		Messaging:     service.MessagingOptions{HardDelete: true},
		Logger:        zerolog.Nop(),
	})

	bundle, err := i18n.Load(i18n.LocaleKo, "")
	s.Require().NoError(err)
	s.jwt = jwt.NewManager("routes-test-secret-0123", "angple", time.Hour)

	s.router = gin.New()
	s.router.Use(middleware.I18n(bundle))
	Setup(s.router, Handlers{
		Conversation: handler.NewConversationHandler(engine, bundle, handler.Paging{Default: 2, Max: 3}),
		Message:      handler.NewMessageHandler(engine, bundle, handler.Paging{Default: 2, Max: 3}),
	}, middleware.JWTAuth(s.jwt, domain.ActorKeyInt, bundle), func(context.Context) error { return s.healthy })
}

func (s *RoutesTestSuite) token(userID string) string {
	tok, err := s.jwt.Generate(userID, "user"+userID)
	s.Require().NoError(err)
	return tok
}

func (s *RoutesTestSuite) do(method, path, userID string, body interface{}, header ...string) (*httptest.ResponseRecorder, envelope) {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(userID))
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	return s.serve(req)
}

func (s *RoutesTestSuite) serve(req *http.Request) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w, env
}

func (s *RoutesTestSuite) decode(raw json.RawMessage, v interface{}) {
	s.Require().NoError(json.Unmarshal(raw, v))
}

func (s *RoutesTestSuite) createConversation(actor string, content string, others ...string) string {
	w, env := s.do(http.MethodPost, apiPrefix+"/conversations", actor, gin.H{"participant_ids": others, "content": content})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var data struct {
		Conversation domain.Conversation `json:"conversation"`
	}
	s.decode(env.Data, &data)
	return data.Conversation.ID
}

func (s *RoutesTestSuite) TestHealth() {
	w, env := s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"status":"ok"}`, string(env.Data))

	s.healthy = errors.New("db down")
	w, env = s.do(http.MethodGet, "/health", "", nil)
	s.Equal(http.StatusServiceUnavailable, w.Code)
	s.Require().NotNil(env.Error)
	s.Equal("error.unavailable", env.Error.Key)
	s.Equal("db down", env.Error.Message)
}

func (s *RoutesTestSuite) TestListPaging() {
	convID := s.createConversation("1", "m0", "2")
	base := apiPrefix + "/conversations/" + convID + "/messages"
	for i := 1; i < 5; i++ {
		w, _ := s.do(http.MethodPost, base, "1", gin.H{"content": fmt.Sprintf("m%d", i)})
		s.Require().Equal(http.StatusCreated, w.Code)
	}

	var views []domain.MessageView
	w, env := s.do(http.MethodGet, base, "2", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(env.Data, &views)
	s.Len(views, 2)
	s.JSONEq(`{"offset":0,"limit":2}`, string(env.Meta))

	// max page size 적용
	w, env = s.do(http.MethodGet, base+"?limit=50", "2", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(env.Data, &views)
	s.Len(views, 3)

	w, env = s.do(http.MethodGet, base+"?offset=3&limit=3", "2", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(env.Data, &views)
	s.Require().Len(views, 2)
	s.Equal("m3", views[0].Message.Content)
	s.Equal("m4", views[1].Message.Content)
}

func (s *RoutesTestSuite) TestAuthRequired() {
	w, env := s.do(http.MethodGet, apiPrefix+"/conversations", "", nil, "Accept-Language", "en-US")
	s.Equal(http.StatusUnauthorized, w.Code)
	s.Require().NotNil(env.Error)
	s.Equal("auth.token_invalid", env.Error.Key)
	s.Equal("Invalid authentication token", env.Error.Message)

	req := httptest.NewRequest(http.MethodGet, apiPrefix+"/conversations", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	w, _ = s.serve(req)
	s.Equal(http.StatusUnauthorized, w.Code)

	// 쿼리 토큰 (웹소켓 클라이언트용)
	req = httptest.NewRequest(http.MethodGet, apiPrefix+"/conversations?token="+s.token("1"), nil)
	w, _ = s.serve(req)
	s.Equal(http.StatusOK, w.Code)
}

func (s *RoutesTestSuite) TestConversationLifecycle() {
	convID := s.createConversation("1", "hi", "2")

	w, env := s.do(http.MethodGet, apiPrefix+"/conversations", "2", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var summaries []domain.ConversationSummary
	s.decode(env.Data, &summaries)
	s.Require().Len(summaries, 1)
	s.Equal(convID, summaries[0].Conversation.ID)
	s.EqualValues(1, summaries[0].UnreadCount)

	w, env = s.do(http.MethodGet, apiPrefix+"/unread-count", "2", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"unread":1}`, string(env.Data))

	w, env = s.do(http.MethodPost, apiPrefix+"/conversations/"+convID+"/read", "2", nil, "Accept-Language", "en")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("Marked 1 messages as read", env.Message)

	w, env = s.do(http.MethodGet, apiPrefix+"/conversations/"+convID, "2", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var detail domain.ConversationDetail
	s.decode(env.Data, &detail)
	s.EqualValues(0, detail.UnreadCount)
	s.EqualValues(1, detail.MessageCount)

	w, env = s.do(http.MethodGet, apiPrefix+"/conversations/"+convID, "3", nil)
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("error.forbidden", env.Error.Key)
	s.Equal("대화 참여자만 접근할 수 있습니다", env.Error.Message)

	w, _ = s.do(http.MethodGet, apiPrefix+"/conversations/"+uuid.NewString(), "2", nil)
	s.Equal(http.StatusNotFound, w.Code)

	w, env = s.do(http.MethodDelete, apiPrefix+"/conversations/"+convID, "1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"removed":false,"purged":false}`, string(env.Data))
	w, env = s.do(http.MethodDelete, apiPrefix+"/conversations/"+convID, "2", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(`{"removed":true,"purged":true}`, string(env.Data))

	w, _ = s.do(http.MethodGet, apiPrefix+"/conversations/"+convID, "2", nil)
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *RoutesTestSuite) TestCreateValidation() {
	w, env := s.do(http.MethodPost, apiPrefix+"/conversations", "1", gin.H{"participant_ids": []string{}})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("error.validation", env.Error.Key)

	// only the actor: refused by the engine
	w, env = s.do(http.MethodPost, apiPrefix+"/conversations", "1", gin.H{"participant_ids": []string{"1"}}, "Accept-Language", "ja")
	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Equal("conversation.too_few_participants", env.Error.Key)
	s.Equal("会話には2人以上の参加者が必要です", env.Error.Message)

	w, env = s.do(http.MethodPost, apiPrefix+"/conversations", "1", gin.H{
		"participant_ids": []string{"2"},
		"relations":       []gin.H{{"type": "ticket", "kind": "snowflake", "id": "1"}},
	})
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("error.validation", env.Error.Key)
}

func (s *RoutesTestSuite) TestMessages() {
	convID := s.createConversation("1", "first", "2")
	base := apiPrefix + "/conversations/" + convID + "/messages"

	w, env := s.do(http.MethodPost, base, "2", gin.H{"content": "reply"})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	s.Equal("메시지를 보냈습니다", env.Message)
	var reply domain.Message
	s.decode(env.Data, &reply)
	mid := fmt.Sprint(reply.ID)

	w, env = s.do(http.MethodGet, base+"?order=desc", "1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var views []domain.MessageView
	s.decode(env.Data, &views)
	s.Require().Len(views, 2)
	s.Equal("reply", views[0].Message.Content)
	s.Equal(domain.StatusUnread, views[0].Status)
	s.True(views[1].IsSender)

	w, env = s.do(http.MethodPost, base+"/"+mid+"/read", "1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(fmt.Sprintf(`{"message_id":%s,"status":"read","changed":true}`, mid), string(env.Data))

	w, env = s.do(http.MethodGet, base+"/"+mid+"/read-by", "2", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.JSONEq(fmt.Sprintf(`{"message_id":%s,"read_by":["1"]}`, mid), string(env.Data))

	w, env = s.do(http.MethodPatch, base+"/"+mid, "2", gin.H{"content": "edited"})
	s.Require().Equal(http.StatusOK, w.Code)
	var edited domain.Message
	s.decode(env.Data, &edited)
	s.Equal("edited", edited.Content)
	s.True(edited.IsEdited)

	w, env = s.do(http.MethodPatch, base+"/"+mid, "1", gin.H{"content": "hijack"})
	s.Equal(http.StatusForbidden, w.Code)
	s.Equal("message.not_sender", env.Error.Key)

	w, _ = s.do(http.MethodPost, base+"/"+mid+"/reactions", "1", gin.H{"reaction": "👍"})
	s.Equal(http.StatusCreated, w.Code)
	w, _ = s.do(http.MethodPost, base+"/"+mid+"/reactions", "1", gin.H{"reaction": "👍"})
	s.Equal(http.StatusOK, w.Code)
	w, env = s.do(http.MethodGet, base+"/"+mid+"/reactions", "2", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	var reactions []domain.Reaction
	s.decode(env.Data, &reactions)
	s.Len(reactions, 1)
	w, _ = s.do(http.MethodDelete, base+"/"+mid+"/reactions", "1", gin.H{"reaction": "👍"})
	s.Equal(http.StatusOK, w.Code)

	w, _ = s.do(http.MethodPost, base+"/"+mid+"/archive", "1", nil)
	s.Equal(http.StatusOK, w.Code)
	w, env = s.do(http.MethodGet, base, "1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.decode(env.Data, &views)
	s.Len(views, 1)

	w, env = s.do(http.MethodDelete, base+"/"+mid, "1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("메시지가 삭제되었습니다", env.Message)

	w, env = s.do(http.MethodPost, base+"/abc/read", "1", nil)
	s.Equal(http.StatusBadRequest, w.Code)
	s.Equal("error.bad_request", env.Error.Key)
}

func (s *RoutesTestSuite) TestAttachmentUpload() {
	convID := s.createConversation("1", "first", "2")

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	s.Require().NoError(mw.WriteField("content", "see attached"))
	fw, err := mw.CreateFormFile("files", "report.pdf")
	s.Require().NoError(err)
	_, err = fw.Write([]byte("%PDF-1.4"))
	s.Require().NoError(err)
	s.Require().NoError(mw.Close())

	req := httptest.NewRequest(http.MethodPost, apiPrefix+"/conversations/"+convID+"/messages", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.token("1"))
	w, env := s.serve(req)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())

	var msg domain.Message
	s.decode(env.Data, &msg)
	s.Equal(domain.MessageKindAttachment, msg.Kind)
	s.Equal("see attached", msg.Content)
	s.Require().Len(msg.Attachments, 1)
	s.Equal("report.pdf", msg.Attachments[0].FileName)
}

func (s *RoutesTestSuite) TestDirectMessage() {
	body := gin.H{"participant_ids": []string{"2"}, "content": "ping"}

	w, env := s.do(http.MethodPost, apiPrefix+"/messages/direct", "1", body)
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var first domain.Message
	s.decode(env.Data, &first)

	w, env = s.do(http.MethodPost, apiPrefix+"/messages/direct", "2", gin.H{"participant_ids": []string{"1"}, "content": "pong"})
	s.Require().Equal(http.StatusCreated, w.Code)
	var second domain.Message
	s.decode(env.Data, &second)
	s.Equal(first.ConversationID, second.ConversationID)
}

func (s *RoutesTestSuite) TestTyping() {
	convID := s.createConversation("1", "hi", "2")
	s.recorder.Reset()

	w, _ := s.do(http.MethodPost, apiPrefix+"/conversations/"+convID+"/typing", "2", nil)
	s.Equal(http.StatusNoContent, w.Code)
	s.Len(s.recorder.Named(broadcast.EventUserTyping), 1)

	w, _ = s.do(http.MethodPost, apiPrefix+"/conversations/"+convID+"/typing", "3", nil)
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *RoutesTestSuite) TestConversationTypes() {
	w, env := s.do(http.MethodPost, apiPrefix+"/conversation-types", "1", gin.H{
		"slug":  "helpdesk",
		"names": gin.H{"ko": "헬프데스크", "en": "Helpdesk"},
	})
	s.Require().Equal(http.StatusCreated, w.Code, w.Body.String())
	var ct domain.ConversationType
	s.decode(env.Data, &ct)

	path := fmt.Sprintf("%s/conversation-types/%d/name", apiPrefix, ct.ID)
	w, env = s.do(http.MethodGet, path, "1", nil, "Accept-Language", "en-GB")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(string(env.Data), `"name":"Helpdesk"`)

	w, env = s.do(http.MethodGet, path+"?locale=fr", "1", nil)
	s.Require().Equal(http.StatusOK, w.Code)
	s.Contains(string(env.Data), `"name":"헬프데스크"`)

	w, _ = s.do(http.MethodGet, apiPrefix+"/conversation-types/0/name", "1", nil)
	s.Equal(http.StatusBadRequest, w.Code)
}
