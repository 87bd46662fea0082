package services

import (
	"bytes"
	"html/template"

	"energia-backend/internal/core/domain"
)

const otpEmailHTML = `<html>
  <body style="font-family: Arial, sans-serif;">
    <h3>Password Reset Request</h3>
    <p>Your one-time password (OTP) to reset your ENERGIA account is:</p>
    <p style="font-size: 20px; font-weight: bold;">{{.Code}}</p>
    <p>This code is valid for {{.Minutes}} minutes.</p>
    <p>If you did not request this, please ignore this email.</p>
  </body>
</html>`

const studentInviteHTML = `<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6;">
    <h2 style="color: #333;">Welcome to ENERGIA, {{.Name}}!</h2>
    <p>You have been registered as a <strong>Class Representative</strong> in the ENERGIA system.</p>
    <h3 style="color: #0066cc;">Your Login Credentials</h3>
    <p style="background-color: #f5f5f5; padding: 15px; border-left: 4px solid #0066cc;">
      <strong>Username (KTU ID):</strong> {{.Username}}<br/>
      <strong>Password:</strong> {{.TempPassword}}
    </p>
    <h3 style="color: #0066cc;">Your Responsibilities</h3>
    <ul>
      <li>Monitor and report sensor data from your classroom</li>
      <li>Ensure timely submission of anomaly reports</li>
      <li>Coordinate with your department coordinators</li>
    </ul>
    <h3 style="color: #0066cc;">Next Steps</h3>
    <ol>
      <li>Log in to the ENERGIA application using your credentials</li>
      <li>Update your profile with current contact information</li>
      <li>Change your password upon first login</li>
    </ol>
    <p style="color: #666; font-size: 0.9em;">
      <strong>Security Note:</strong> Do not share your credentials with anyone.
      If you believe your account has been compromised, contact your administrator immediately.
    </p>
    <hr/>
    <p style="color: #999; font-size: 0.85em;">ENERGIA System - Energy Monitoring &amp; Anomaly Detection</p>
  </body>
</html>`

const staffInviteHTML = `<html>
  <body style="font-family: Arial, sans-serif; line-height: 1.6;">
    <h2 style="color: #333;">Welcome to ENERGIA, {{.Name}}!</h2>
    <p>You have been registered as a <strong>{{.Title}}</strong> in the ENERGIA system.</p>
    <h3 style="color: #006633;">Your Login Credentials</h3>
    <p style="background-color: #f5f5f5; padding: 15px; border-left: 4px solid #006633;">
      <strong>Username/Email:</strong> {{.Username}}<br/>
      <strong>Password:</strong> {{.TempPassword}}
    </p>
    <h3 style="color: #006633;">Getting Started</h3>
    <ol>
      <li>Log in to the ENERGIA application using your credentials</li>
      <li>Update your profile with contact information</li>
      <li>Change your password upon first login</li>
      <li>Review the {{.Dashboard}} dashboard and available reports</li>
    </ol>
    <p style="color: #666; font-size: 0.9em;">
      <strong>Security Note:</strong> Keep your credentials confidential.
      As a {{.Dashboard}}, you have elevated access to department data.
    </p>
    <hr/>
    <p style="color: #999; font-size: 0.85em;">ENERGIA System - Energy Monitoring &amp; Anomaly Detection</p>
  </body>
</html>`

var (
	otpTemplate           = template.Must(template.New("otp").Parse(otpEmailHTML))
	studentInviteTemplate = template.Must(template.New("student_invite").Parse(studentInviteHTML))
	staffInviteTemplate   = template.Must(template.New("staff_invite").Parse(staffInviteHTML))
)

// renderOTP renders the password reset email body
func renderOTP(code string, minutes int) (string, error) {
	var buf bytes.Buffer
	err := otpTemplate.Execute(&buf, struct {
		Code    string
		Minutes int
	}{code, minutes})
	return buf.String(), err
}

// renderInvite renders the role-specific invitation subject and body
func renderInvite(inv *Invitation) (string, string, error) {
	var buf bytes.Buffer

	if inv.Role == domain.RoleStudent {
		if err := studentInviteTemplate.Execute(&buf, inv); err != nil {
			return "", "", err
		}
		return "ENERGIA - Class Representative Access Credentials", buf.String(), nil
	}

	title, dashboard := "Coordinator", "coordinator"
	if inv.Role == domain.RoleAdmin {
		title, dashboard = "Administrator", "administrator"
	}
	err := staffInviteTemplate.Execute(&buf, struct {
		Name         string
		Username     string
		TempPassword string
		Title        string
		Dashboard    string
	}{inv.Name, inv.Username, inv.TempPassword, title, dashboard})
	if err != nil {
		return "", "", err
	}
	return "ENERGIA - " + title + " Access Credentials", buf.String(), nil
}
