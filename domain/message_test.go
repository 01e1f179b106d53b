package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestMessage_Validate(t *testing.T) {
	req := require.New(t)
	tests := []struct {
		name    string
		message Message
		wantErr bool
	}{
		{"Valid text", Message{ID: uuid.New(), SenderID: "a", ReceiverID: "b", Kind: KindText, Content: "hi"}, false},
		{"Valid image", Message{ID: uuid.New(), SenderID: "a", ReceiverID: "b", Kind: KindImage, AttachmentURL: "/uploads/x.png"}, false},
		{"Text without content", Message{ID: uuid.New(), SenderID: "a", ReceiverID: "b", Kind: KindText}, true},
		{"Text carrying an attachment", Message{ID: uuid.New(), SenderID: "a", ReceiverID: "b", Kind: KindText, Content: "hi", AttachmentURL: "/x"}, true},
		{"Image without attachment", Message{ID: uuid.New(), SenderID: "a", ReceiverID: "b", Kind: KindImage}, true},
		{"Image carrying text", Message{ID: uuid.New(), SenderID: "a", ReceiverID: "b", Kind: KindImage, AttachmentURL: "/x", Content: "hi"}, true},
		{"Missing sender", Message{ID: uuid.New(), ReceiverID: "b", Kind: KindText, Content: "hi"}, true},
		{"Missing receiver", Message{ID: uuid.New(), SenderID: "a", Kind: KindText, Content: "hi"}, true},
		{"Unknown kind", Message{ID: uuid.New(), SenderID: "a", ReceiverID: "b", Kind: "video", Content: "hi"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.message.Validate()
			if tt.wantErr {
				req.Error(err)
			} else {
				req.NoError(err)
			}
		})
	}
}
