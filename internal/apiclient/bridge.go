package apiclient

import "context"

// Bridge binds a Client to one caller's access token so an exam session can
// submit without knowing about authentication.
type Bridge struct {
	client *Client
	token  string
}

// NewBridge creates a new Bridge.
func (c *Client) NewBridge(token string) *Bridge {
	return &Bridge{client: c, token: token}
}

// Submit sends an exam submission.
func (b *Bridge) Submit(ctx context.Context, trainerID string, submission any) (*SubmitResult, error) {
	return b.client.SubmitExam(ctx, b.token, trainerID, submission)
}

// UploadAudio uploads a recording.
func (b *Bridge) UploadAudio(ctx context.Context, audio []byte, contentType string) (string, error) {
	return b.client.UploadAudio(ctx, b.token, audio, contentType)
}
