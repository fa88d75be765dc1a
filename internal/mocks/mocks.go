package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"realtime-service/internal/models"
	"realtime-service/internal/push"
	"realtime-service/internal/repositories"
)

type ChatRepositoryMock struct {
	mock.Mock
}

func (m *ChatRepositoryMock) RoomsForUser(ctx context.Context, userID string) ([]models.Chatroom, error) {
	args := m.Called(ctx, userID)
	var rooms []models.Chatroom
	if val := args.Get(0); val != nil {
		rooms = val.([]models.Chatroom)
	}
	return rooms, args.Error(1)
}

func (m *ChatRepositoryMock) ParticipantsOf(ctx context.Context, chatroomID string) ([]string, error) {
	args := m.Called(ctx, chatroomID)
	var ids []string
	if val := args.Get(0); val != nil {
		ids = val.([]string)
	}
	return ids, args.Error(1)
}

func (m *ChatRepositoryMock) AppendMessage(ctx context.Context, chatroomID string, sender models.UserRef, content string) (models.ChatroomMessage, error) {
	args := m.Called(ctx, chatroomID, sender, content)
	var msg models.ChatroomMessage
	if val := args.Get(0); val != nil {
		msg = val.(models.ChatroomMessage)
	}
	return msg, args.Error(1)
}

func (m *ChatRepositoryMock) SetReadMarker(ctx context.Context, chatroomID string, userID string) error {
	args := m.Called(ctx, chatroomID, userID)
	return args.Error(0)
}

type UserRepositoryMock struct {
	mock.Mock
}

func (m *UserRepositoryMock) GetUserRef(ctx context.Context, userID string) (models.UserRef, error) {
	args := m.Called(ctx, userID)
	var user models.UserRef
	if val := args.Get(0); val != nil {
		user = val.(models.UserRef)
	}
	return user, args.Error(1)
}

type NotificationRepositoryMock struct {
	mock.Mock
}

func (m *NotificationRepositoryMock) Create(ctx context.Context, receiverID string, sender models.UserRef, notificationType models.NotificationType, entityID *string) (models.Notification, error) {
	args := m.Called(ctx, receiverID, sender, notificationType, entityID)
	var n models.Notification
	if val := args.Get(0); val != nil {
		n = val.(models.Notification)
	}
	return n, args.Error(1)
}

type PushDeliveryMock struct {
	mock.Mock
}

func (m *PushDeliveryMock) NotifyUsers(ctx context.Context, userIDs []string, payload push.Payload) error {
	args := m.Called(ctx, userIDs, payload)
	return args.Error(0)
}

func (m *PushDeliveryMock) Close() error {
	args := m.Called()
	return args.Error(0)
}

var _ repositories.ChatRepository = (*ChatRepositoryMock)(nil)
var _ repositories.UserRepository = (*UserRepositoryMock)(nil)
var _ repositories.NotificationRepository = (*NotificationRepositoryMock)(nil)
var _ push.Delivery = (*PushDeliveryMock)(nil)

type NotificationServiceMock struct {
	mock.Mock
}

func (m *NotificationServiceMock) Create(ctx context.Context, receiverID, senderID string, notificationType models.NotificationType, entityID *string) (models.Notification, error) {
	args := m.Called(ctx, receiverID, senderID, notificationType, entityID)
	var n models.Notification
	if val := args.Get(0); val != nil {
		n = val.(models.Notification)
	}
	return n, args.Error(1)
}
