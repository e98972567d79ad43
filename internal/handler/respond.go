package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/damoang/angple-messenger/internal/common"
	"github.com/damoang/angple-messenger/internal/config"
	"github.com/damoang/angple-messenger/internal/middleware"
	"github.com/damoang/angple-messenger/pkg/i18n"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

var errBadRequest = errors.New("bad request")

// responder 에러/성공 메시지를 요청 locale 로 번역
type responder struct {
	bundle   *i18n.Bundle
	validate *validator.Validate
}

func newResponder(bundle *i18n.Bundle) responder {
	return responder{bundle: bundle, validate: validator.New()}
}

func (r responder) t(c *gin.Context, key string, args ...interface{}) string {
	return r.bundle.T(middleware.GetLocale(c), key, args...)
}

// fail renders an engine error; 5xx errors are attached to the context for the request log
func (r responder) fail(c *gin.Context, err error) {
	status := common.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	key := common.ErrorKey(err)
	common.ErrorResponse(c, status, key, r.t(c, key))
}

func (r responder) badRequest(c *gin.Context, key string) {
	common.ErrorResponse(c, http.StatusBadRequest, key, r.t(c, key))
}

// bind decodes the JSON body into req and validates it. Renders 400 on failure.
func (r responder) bind(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		r.badRequest(c, "error.bad_request")
		return false
	}
	if err := r.validate.Struct(req); err != nil {
		r.badRequest(c, "error.validation")
		return false
	}
	return true
}

func messageIDParam(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("mid"), 10, 64)
	if err != nil || id == 0 {
		return 0, errBadRequest
	}
	return id, nil
}

// Paging page sizes applied to list endpoints
type Paging struct {
	Default int
	Max     int
}

// PagingFromConfig converts the messaging config section
func PagingFromConfig(cfg config.MessagingConfig) Paging {
	return Paging{Default: cfg.DefaultPageSize, Max: cfg.MaxPageSize}
}

// window offset/limit from the query string; a missing limit takes the default page size
func (p Paging) window(c *gin.Context) (int, int) {
	def := p.Default
	if def <= 0 {
		def = 25
	}
	limit := queryInt(c, "limit")
	if limit == 0 {
		limit = def
	}
	if p.Max > 0 && limit > p.Max {
		limit = p.Max
	}
	return queryInt(c, "offset"), limit
}

// queryInt 음수/비정상 값은 0
func queryInt(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	if err != nil || n < 0 {
		return 0
	}
	return n
}
