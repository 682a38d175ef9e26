package provider

import (
	"io"
	"log/slog"

	"github.com/sevigo/pixel-warden/internal/core"
	"github.com/sevigo/pixel-warden/internal/notification"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

// baseContext is a delivery context with the required chain and no integration.
func baseContext() *core.NotificationContext {
	return &core.NotificationContext{
		Notification: core.BuildNotification{ID: "n1", BuildID: "b1", Type: core.NotificationDiffDetected},
		Build: &core.Build{
			ID:                        "b1",
			ProjectID:                 "p1",
			Name:                      core.DefaultBuildName,
			Number:                    3,
			JobStatus:                 core.JobStatusComplete,
			Type:                      core.BuildTypeCheck,
			CompareScreenshotBucketID: "sb1",
		},
		Project: &core.Project{ID: "p1", Name: "web", AccountID: "a1"},
		Account: &core.Account{ID: "a1", Slug: "acme"},
		Compare: &core.ScreenshotBucket{ID: "sb1", Name: "default", Commit: "abc123", Branch: "feature"},
	}
}

func delivery(nc *core.NotificationContext, n core.NotificationType) *core.Delivery {
	payload, err := notification.BuildPayload(n, nc.Build.Type, "2 changed")
	if err != nil {
		panic(err)
	}
	return &core.Delivery{
		Context:  nc,
		BuildURL: "https://pixels.example.com/acme/web/builds/3",
		Payload:  payload,
	}
}
