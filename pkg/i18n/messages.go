package i18n

// DefaultMessages returns built-in translations for all supported locales.
// These can be overridden by loading JSON files from a directory.
func DefaultMessages() map[Locale]map[string]string {
	return map[Locale]map[string]string{
		LocaleKo: koMessages,
		LocaleEn: enMessages,
		LocaleJa: jaMessages,
	}
}

var koMessages = map[string]string{
	// Common errors
	"error.not_found":         "요청한 리소스를 찾을 수 없습니다",
	"error.unauthorized":      "인증이 필요합니다",
	"error.forbidden":         "대화 참여자만 접근할 수 있습니다",
	"error.bad_request":       "잘못된 요청입니다",
	"error.internal":          "서버 내부 오류가 발생했습니다",
	"error.unavailable":       "일시적인 오류가 발생했습니다. 잠시 후 다시 시도해주세요",
	"error.vetoed":            "요청이 정책에 의해 거부되었습니다",
	"error.too_many_requests": "요청이 너무 많습니다. 잠시 후 다시 시도해주세요",
	"error.validation":        "입력값이 올바르지 않습니다",

	// Auth
	"auth.token_expired": "인증 토큰이 만료되었습니다. 다시 로그인해주세요",
	"auth.token_invalid": "유효하지 않은 인증 토큰입니다",

	// Conversations
	"conversation.too_few_participants": "대화에는 최소 두 명의 참여자가 필요합니다",
	"conversation.create_success":       "대화가 생성되었습니다",
	"conversation.delete_success":       "대화가 삭제되었습니다",
	"conversation.read_all_success":     "%d개의 메시지를 읽음 처리했습니다",
	"conversation.unread_all_success":   "%d개의 메시지를 안읽음 처리했습니다",

	// Messages
	"message.send_success":   "메시지를 보냈습니다",
	"message.edit_success":   "메시지가 수정되었습니다",
	"message.delete_success": "메시지가 삭제되었습니다",
	"message.status_success": "메시지 상태가 변경되었습니다",
	"message.edit_disabled":  "메시지 수정 기능이 비활성화되어 있습니다",
	"message.edit_expired":   "메시지 수정 가능 시간이 지났습니다",
	"message.not_sender":     "본인이 보낸 메시지만 수정할 수 있습니다",
	"message.invalid_status": "알 수 없는 메시지 상태입니다",
}

var enMessages = map[string]string{
	// Common errors
	"error.not_found":         "The requested resource was not found",
	"error.unauthorized":      "Authentication is required",
	"error.forbidden":         "Only participants of the conversation may do this",
	"error.bad_request":       "Invalid request",
	"error.internal":          "An internal server error occurred",
	"error.unavailable":       "A temporary error occurred. Please try again later",
	"error.vetoed":            "The request was rejected by policy",
	"error.too_many_requests": "Too many requests. Please try again later",
	"error.validation":        "Invalid input",

	// Auth
	"auth.token_expired": "Authentication token has expired. Please login again",
	"auth.token_invalid": "Invalid authentication token",

	// Conversations
	"conversation.too_few_participants": "A conversation needs at least two participants",
	"conversation.create_success":       "Conversation created",
	"conversation.delete_success":       "Conversation deleted",
	"conversation.read_all_success":     "Marked %d messages as read",
	"conversation.unread_all_success":   "Marked %d messages as unread",

	// Messages
	"message.send_success":   "Message sent",
	"message.edit_success":   "Message edited",
	"message.delete_success": "Message deleted",
	"message.status_success": "Message status updated",
	"message.edit_disabled":  "Message editing is disabled",
	"message.edit_expired":   "The time limit for editing this message has passed",
	"message.not_sender":     "You can only edit messages you sent",
	"message.invalid_status": "Unknown message status",
}

var jaMessages = map[string]string{
	// Common errors
	"error.not_found":         "リクエストされたリソースが見つかりません",
	"error.unauthorized":      "認証が必要です",
	"error.forbidden":         "会話の参加者のみ操作できます",
	"error.bad_request":       "無効なリクエストです",
	"error.internal":          "サーバー内部エラーが発生しました",
	"error.unavailable":       "一時的なエラーが発生しました。しばらくしてから再試行してください",
	"error.vetoed":            "リクエストはポリシーにより拒否されました",
	"error.too_many_requests": "リクエストが多すぎます。しばらくしてから再試行してください",
	"error.validation":        "入力値が正しくありません",

	// Auth
	"auth.token_expired": "認証トークンの有効期限が切れました。再度ログインしてください",
	"auth.token_invalid": "無効な認証トークンです",

	// Conversations
	"conversation.too_few_participants": "会話には2人以上の参加者が必要です",
	"conversation.create_success":       "会話が作成されました",
	"conversation.delete_success":       "会話が削除されました",
	"conversation.read_all_success":     "%d件のメッセージを既読にしました",
	"conversation.unread_all_success":   "%d件のメッセージを未読にしました",

	// Messages
	"message.send_success":   "メッセージを送信しました",
	"message.edit_success":   "メッセージが編集されました",
	"message.delete_success": "メッセージが削除されました",
	"message.status_success": "メッセージの状態が更新されました",
	"message.edit_disabled":  "メッセージの編集は無効になっています",
	"message.edit_expired":   "メッセージの編集可能時間を過ぎました",
	"message.not_sender":     "自分が送信したメッセージのみ編集できます",
	"message.invalid_status": "不明なメッセージ状態です",
}
