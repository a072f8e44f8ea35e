package notifications

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"strings"
	"time"
)

type AppointmentNotice struct {
	AppointmentID string
	CustomerName  string
	CustomerEmail string
	BookingTime   time.Time
	Location      *time.Location
	Service       string
	LicensePlate  string
	Technicians   []string
	Reason        string
}

func (n AppointmentNotice) When() string {
	t := n.BookingTime
	if n.Location != nil {
		t = t.In(n.Location)
	}
	return t.Format("15:04 02/01/2006")
}

func (n AppointmentNotice) TechnicianList() string {
	return strings.Join(n.Technicians, ", ")
}

const appointmentBookedTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Xin chào {{.CustomerName}},</p>
  <p>Chúng tôi đã nhận được lịch hẹn của bạn:</p>
  <ul>
    <li>Dịch vụ: {{.Service}}</li>
    <li>Thời gian: {{.When}}</li>
    {{if .LicensePlate}}<li>Biển số: {{.LicensePlate}}</li>{{end}}
    <li>Mã lịch hẹn: {{.AppointmentID}}</li>
  </ul>
  <p>Trung tâm sẽ xác nhận và phân công kỹ thuật viên trong thời gian sớm nhất.</p>
</body>
</html>`

const appointmentAssignedTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Xin chào {{.CustomerName}},</p>
  <p>Lịch hẹn {{.AppointmentID}} lúc {{.When}} đã được xác nhận.</p>
  <p>Kỹ thuật viên phụ trách: {{.TechnicianList}}</p>
</body>
</html>`

const appointmentCancelledTemplate = `<!DOCTYPE html>
<html>
<body>
  <p>Xin chào {{.CustomerName}},</p>
  <p>Lịch hẹn {{.AppointmentID}} lúc {{.When}} đã bị hủy.</p>
  {{if .Reason}}<p>Lý do: {{.Reason}}</p>{{end}}
</body>
</html>`

var (
	appointmentBookedTmpl    = template.Must(template.New("appointment_booked").Parse(appointmentBookedTemplate))
	appointmentAssignedTmpl  = template.Must(template.New("appointment_assigned").Parse(appointmentAssignedTemplate))
	appointmentCancelledTmpl = template.Must(template.New("appointment_cancelled").Parse(appointmentCancelledTemplate))
)

func renderHTML(tmpl *template.Template, data interface{}) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func (c *BrevoClient) sendTemplate(ctx context.Context, toEmail, toName, subject string, tmpl *template.Template, data interface{}) (string, error) {
	if c == nil {
		return "", errors.New("brevo client is nil")
	}
	html, err := renderHTML(tmpl, data)
	if err != nil {
		return "", err
	}
	return c.sendHTML(ctx, toEmail, toName, subject, html)
}
