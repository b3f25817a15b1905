// Package email provides a provider-agnostic interface for sending
// transactional billing emails, with a Postmark implementation for
// production and a disk-backed sender for local development.
//
// The package is built around the EmailSender interface, allowing providers
// to be swapped without changing application code:
//   - PostmarkClient for production delivery with open/click tracking
//   - DevSender for local development (saves emails to disk)
//
// All implementations validate parameters before sending and report
// failures through the package's sentinel errors.
//
// # Usage
//
//	cfg := email.Config{
//	    PostmarkServerToken:  "your-server-token",
//	    PostmarkAccountToken: "your-account-token",
//	    SenderEmail:          "billing@example.com",
//	    SupportEmail:         "support@example.com",
//	}
//
//	sender, err := email.NewPostmarkClient(cfg)
//	if err != nil {
//	    // Handle configuration error
//	}
//
//	err = sender.SendEmail(ctx, email.SendEmailParams{
//	    SendTo:   "user@example.com",
//	    Subject:  "Payment failed",
//	    BodyHTML: htmlContent,
//	    Tag:      "payment-failed", // optional, for analytics
//	})
//
// Development mode saves emails locally instead of sending:
//
//	devSender := email.NewDevSender("./email-output")
//	err := devSender.SendEmail(ctx, params)
//
// Use MustNewPostmarkClient for initialization that panics on invalid
// config, failing fast during startup.
package email
