// Package notify renders and delivers the emails sent when SSO enrolls a
// user into an organization.
//
// Two messages exist: the invitation sent to the user, carrying the
// acceptance link, and the pending notice sent to the organization's
// notification address. SMTPSender delivers them with go-mail:
//
//	sender := notify.NewSMTPSender(notify.SMTPConfig{
//		Host: "smtp.example.com",
//		Port: 587,
//		From: "sso@example.com",
//	})
//	msg, err := notify.InviteMessage(user.Email, notify.InviteVars{
//		OrganizationName: org.Name,
//		Link:             link,
//	})
//	if err == nil {
//		err = sender.Send(ctx, msg)
//	}
package notify
