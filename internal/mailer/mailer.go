package mailer

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"time"

	"github.com/sysu-ecnc-dev/wfh-manager/backend/internal/domain"
	"github.com/wneessen/go-mail"
)

//go:embed templates/*.html
var templateFS embed.FS

var funcs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.Format(domain.DateLayout)
	},
	"minutes": func(seconds int) int {
		return seconds / 60
	},
}

type kind struct {
	template string
	subject  string
	data     func() any
}

var kinds = map[domain.MailType]kind{
	domain.MailTypeResetPassword: {
		template: "reset_password.html",
		subject:  "居家办公管理系统 - 重置密码",
		data:     func() any { return &domain.ResetPasswordMailData{} },
	},
	domain.MailTypeRequestSubmitted: {
		template: "request_submitted.html",
		subject:  "居家办公管理系统 - 新的居家办公申请",
		data:     func() any { return &domain.RequestSubmittedMailData{} },
	},
	domain.MailTypeStatusChanged: {
		template: "status_changed.html",
		subject:  "居家办公管理系统 - 申请状态更新",
		data:     func() any { return &domain.StatusChangedMailData{} },
	},
	domain.MailTypeRevokedStaff: {
		template: "revoked_staff.html",
		subject:  "居家办公管理系统 - 居家办公安排已撤销",
		data:     func() any { return &domain.RevocationMailData{} },
	},
	domain.MailTypeRevokedManager: {
		template: "revoked_manager.html",
		subject:  "居家办公管理系统 - 团队成员居家办公安排已撤销",
		data:     func() any { return &domain.RevocationMailData{} },
	},
}

func parse(k kind) (*template.Template, error) {
	return template.New(k.template).Funcs(funcs).ParseFS(templateFS, "templates/"+k.template, "templates/layout.html")
}

func decode(raw domain.RawMailMessage) (kind, any, error) {
	k, ok := kinds[raw.Type]
	if !ok {
		return kind{}, nil, fmt.Errorf("不支持的邮件类型: %s", raw.Type)
	}
	data := k.data()
	if err := json.Unmarshal(raw.Data, data); err != nil {
		return kind{}, nil, fmt.Errorf("邮件数据反序列化失败: %w", err)
	}
	return k, data, nil
}

// Render 渲染邮件正文，主要用于预览和测试
func Render(raw domain.RawMailMessage) (string, error) {
	k, data, err := decode(raw)
	if err != nil {
		return "", err
	}
	tmpl, err := parse(k)
	if err != nil {
		return "", fmt.Errorf("无法解析邮件模板: %w", err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("无法渲染邮件模板: %w", err)
	}
	return buf.String(), nil
}

// Compose 根据队列中的邮件信息构建一封待发送的邮件
func Compose(raw domain.RawMailMessage, from string) (*mail.Msg, error) {
	k, data, err := decode(raw)
	if err != nil {
		return nil, err
	}

	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, fmt.Errorf("无法设置邮件发件人: %w", err)
	}
	if err := msg.To(raw.To); err != nil {
		return nil, fmt.Errorf("无法设置邮件收件人: %w", err)
	}

	tmpl, err := parse(k)
	if err != nil {
		return nil, fmt.Errorf("无法解析邮件模板: %w", err)
	}
	if err := msg.SetBodyHTMLTemplate(tmpl, data); err != nil {
		return nil, fmt.Errorf("无法设置邮件正文: %w", err)
	}
	msg.Subject(k.subject)

	return msg, nil
}
