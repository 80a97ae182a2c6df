package mail

import (
	"fmt"
	"html/template"
	"strings"
)

// Message subjects.
const (
	SubjectWelcome       = "Welcome to our platform"
	SubjectVerifyOTP     = "Account Verification OTP"
	SubjectPasswordReset = "Password Reset OTP"
)

var (
	welcomeTmpl = template.Must(template.New("welcome").Parse(`
<div style="font-family: sans-serif; max-width: 480px;">
  <h2>Welcome, {{.Name}}!</h2>
  <p>Your account has been created with the email <strong>{{.Email}}</strong>.</p>
  <p>Please verify your email address to unlock all features.</p>
</div>`))

	verifyOtpTmpl = template.Must(template.New("verify").Parse(`
<div style="font-family: sans-serif; max-width: 480px;">
  <h2>Verify your account</h2>
  <p>Use the code below to verify the account registered to <strong>{{.Email}}</strong>.</p>
  <p style="font-size: 28px; letter-spacing: 6px;"><strong>{{.OTP}}</strong></p>
  <p>The code expires in 15 minutes. Do not share it with anyone.</p>
</div>`))

	resetOtpTmpl = template.Must(template.New("reset").Parse(`
<div style="font-family: sans-serif; max-width: 480px;">
  <h2>Reset your password</h2>
  <p>Use the code below to reset the password for <strong>{{.Email}}</strong>.</p>
  <p style="font-size: 28px; letter-spacing: 6px;"><strong>{{.OTP}}</strong></p>
  <p>The code expires in 15 minutes. Do not share it with anyone.</p>
</div>`))
)

type templateData struct {
	Name  string
	Email string
	OTP   string
}

func render(t *template.Template, data templateData) (string, error) {
	var sb strings.Builder
	if err := t.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s template: %w", t.Name(), err)
	}
	return sb.String(), nil
}

// WelcomeBody renders the post-registration greeting.
func WelcomeBody(name, email string) (string, error) {
	return render(welcomeTmpl, templateData{Name: name, Email: email})
}

// VerifyOTPBody renders the account-verification code message.
func VerifyOTPBody(email, code string) (string, error) {
	return render(verifyOtpTmpl, templateData{Email: email, OTP: code})
}

// ResetOTPBody renders the password-reset code message.
func ResetOTPBody(email, code string) (string, error) {
	return render(resetOtpTmpl, templateData{Email: email, OTP: code})
}
