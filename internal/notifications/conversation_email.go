package notifications

import "html/template"

type ConversationNotice struct {
	ConversationID string
	Subject        string
	CustomerName   string
	CustomerEmail  string
	StaffName      string
}

const conversationClaimedTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Xin chào {{.CustomerName}},</p>
  <p>Yêu cầu "{{.Subject}}" đã được nhân viên {{.StaffName}} tiếp nhận.</p>
  <p>Bạn có thể tiếp tục trao đổi trong mục hỗ trợ của ứng dụng.</p>
</body>
</html>`

var conversationClaimedTmpl = template.Must(template.New("conversation_claimed").Parse(conversationClaimedTemplate))
