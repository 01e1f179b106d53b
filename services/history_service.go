package services

import (
	"github.com/samber/lo"

	"chat-relay/domain"
	"chat-relay/repositories"
)

type IHistoryService interface {
	GetMessages(userID string, cursor *string) ([]domain.Message, *string, error)
}

// HistoryService is the read path: a lookup of a user's durable messages,
// out of the live relay's scope.
type HistoryService struct {
	messageRepository repositories.IMessageRepository
}

func NewHistoryService(repo repositories.IMessageRepository) *HistoryService {
	return &HistoryService{messageRepository: repo}
}

// GetMessages returns one page of a user's history, newest first, plus the
// cursor of the next page.
func (s *HistoryService) GetMessages(userID string, cursor *string) ([]domain.Message, *string, error) {
	messages, next, err := s.messageRepository.GetMessages(userID, cursor)
	if err != nil {
		return nil, nil, err
	}
	return fromDiskMessages(messages), next, nil
}

func fromDiskMessages(messages []repositories.DiskMessage) []domain.Message {
	return lo.Map(messages, func(item repositories.DiskMessage, _ int) domain.Message {
		return domain.Message{
			ID:            item.ID,
			SenderID:      item.Sender,
			ReceiverID:    item.Receiver,
			Kind:          domain.MessageKind(item.Kind),
			Content:       item.Content,
			AttachmentURL: item.AttachmentURL,
			CreatedAt:     item.At,
		}
	})
}
