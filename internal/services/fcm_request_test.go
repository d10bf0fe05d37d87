package services

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gregmarra/the-blue-alliance/internal/models"
)

func decodeMessage(t *testing.T, req *FCMRequest) map[string]any {
	t.Helper()
	raw, err := req.JSON()
	require.NoError(t, err)
	var envelope map[string]map[string]any
	require.NoError(t, json.Unmarshal(raw, &envelope))
	require.Len(t, envelope, 1)
	return envelope["message"]
}

func TestNewFCMRequestDeliveryOptions(t *testing.T) {
	n := models.NewNotification(models.NotificationPing)

	tests := []struct {
		name    string
		opts    []DeliveryOption
		wantErr error
	}{
		{name: "none", wantErr: ErrNoDeliveryOption},
		{name: "token and topic", opts: []DeliveryOption{WithToken("abc"), WithTopic("broadcasts")}, wantErr: ErrMultipleDeliveryOptions},
		{name: "all three", opts: []DeliveryOption{WithToken("a"), WithTopic("b"), WithCondition("c")}, wantErr: ErrMultipleDeliveryOptions},
		{name: "empty token", opts: []DeliveryOption{WithToken("")}, wantErr: ErrInvalidDeliveryOption},
		{name: "token", opts: []DeliveryOption{WithToken("abc")}},
		{name: "topic", opts: []DeliveryOption{WithTopic("broadcasts")}},
		{name: "condition", opts: []DeliveryOption{WithCondition("'a' in topics")}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewFCMRequest(n, tt.opts...)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, req)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, req)
		})
	}
}

func TestNewFCMRequestNilNotification(t *testing.T) {
	_, err := NewFCMRequest(nil, WithToken("abc"))
	assert.Error(t, err)
}

func TestFCMRequestTargetField(t *testing.T) {
	n := models.NewNotification(models.NotificationPing)
	for kind, opt := range map[string]DeliveryOption{
		"token":     WithToken("value"),
		"topic":     WithTopic("value"),
		"condition": WithCondition("value"),
	} {
		req, err := NewFCMRequest(n, opt)
		require.NoError(t, err)

		msg := decodeMessage(t, req)
		assert.Equal(t, "value", msg[kind])
		for _, other := range []string{"token", "topic", "condition"} {
			if other != kind {
				assert.NotContains(t, msg, other)
			}
		}
	}
}

func TestFCMRequestDataOnly(t *testing.T) {
	n := models.NewNotification(models.NotificationMatchScore, models.WithData(map[string]any{"match_key": "2019nyny_qm1"}))
	req, err := NewFCMRequest(n, WithTopic("event_2019nyny"))
	require.NoError(t, err)

	msg := decodeMessage(t, req)
	assert.Equal(t, map[string]any{"match_key": "2019nyny_qm1", "message_type": "match_score"}, msg["data"])
	assert.NotContains(t, msg, "notification")
	assert.NotContains(t, msg, "android")
	assert.NotContains(t, msg, "apns")
	assert.NotContains(t, msg, "webpush")

	// Serializing does not leak message_type back into the notification.
	assert.NotContains(t, n.Data(), "message_type")
}

func TestFCMRequestEmptyDataStillCarriesMessageType(t *testing.T) {
	n := models.NewNotification(models.NotificationPing, models.WithDisplay("Test", "This is a test"))
	req, err := NewFCMRequest(n, WithToken("abc"))
	require.NoError(t, err)

	msg := decodeMessage(t, req)
	assert.Equal(t, map[string]any{"message_type": "ping"}, msg["data"])
	assert.Equal(t, map[string]any{"title": "Test", "body": "This is a test"}, msg["notification"])
}

func TestFCMRequestPlatformResolution(t *testing.T) {
	n := models.NewNotification(
		models.NotificationBroadcast,
		models.WithPlatformPayload(models.PlatformPayload{Priority: models.PriorityHigh}),
		models.WithApns(models.ApnsPayload{Headers: map[string]string{"apns-push-type": "background"}}),
	)
	req, err := NewFCMRequest(n, WithTopic("broadcasts"))
	require.NoError(t, err)

	msg := decodeMessage(t, req)
	assert.Equal(t, map[string]any{"priority": "HIGH"}, msg["android"])
	assert.Equal(t, map[string]any{"headers": map[string]any{"apns-push-type": "background"}}, msg["apns"])
	assert.Equal(t, map[string]any{"headers": map[string]any{"Urgency": "high"}}, msg["webpush"])
}

func TestFCMRequestPlatformOmittedWithoutContent(t *testing.T) {
	n := models.NewNotification(
		models.NotificationBroadcast,
		models.WithAndroid(models.AndroidPayload{CollapseKey: "broadcast"}),
	)
	req, err := NewFCMRequest(n, WithTopic("broadcasts"))
	require.NoError(t, err)

	msg := decodeMessage(t, req)
	assert.Equal(t, map[string]any{"collapse_key": "broadcast"}, msg["android"])
	assert.NotContains(t, msg, "apns")
	assert.NotContains(t, msg, "webpush")
}

func TestFCMRequestString(t *testing.T) {
	n := models.NewNotification(models.NotificationPing, models.WithDisplay("Hi", ""))
	req, err := NewFCMRequest(n, WithToken("abc"))
	require.NoError(t, err)
	assert.Equal(t, `FCMRequest(token="abc", notification=Notification(ping, title=Hi))`, req.String())
}
