package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/solecare/solecare-api/models"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"
	"gorm.io/gorm"
)

// Notification is a push message addressed to a customer.
type Notification struct {
	CustomerID string
	Title      string
	Body       string
	Data       map[string]string
}

// NotificationResult reports delivery without failing the caller.
type NotificationResult struct {
	Delivered bool
	Err       error
}

// PushNotifier delivers customer notifications. Implementations never panic or
// return an error; failures travel in the result.
type PushNotifier interface {
	Notify(ctx context.Context, n Notification) NotificationResult
}

var errNoContact = errors.New("customer has no contact number")

// smsSender is the part of the Twilio REST API used here
type smsSender interface {
	CreateMessage(params *twilioApi.CreateMessageParams) (*twilioApi.ApiV2010Message, error)
}

// TwilioNotifier sends notifications as SMS to the customer's contact number.
type TwilioNotifier struct {
	db     *gorm.DB
	sender smsSender
	from   string
}

var notifierInstance PushNotifier = NoopNotifier{}

// InitTwilioNotifier creates the Twilio-backed notifier and installs it.
func InitTwilioNotifier(db *gorm.DB, accountSID, authToken, from string) PushNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	notifierInstance = NewTwilioNotifier(db, client.Api, from)
	return notifierInstance
}

// NewTwilioNotifier builds a notifier around any Twilio message sender.
func NewTwilioNotifier(db *gorm.DB, sender smsSender, from string) *TwilioNotifier {
	return &TwilioNotifier{db: db, sender: sender, from: from}
}

// GetNotifier returns the installed notifier
func GetNotifier() PushNotifier {
	return notifierInstance
}

// SetNotifier sets the notifier instance (primarily for testing)
func SetNotifier(n PushNotifier) {
	notifierInstance = n
}

// Notify looks up the customer's contact and sends title and body as one SMS.
func (n *TwilioNotifier) Notify(ctx context.Context, msg Notification) NotificationResult {
	var customer models.Customer
	if err := n.db.WithContext(ctx).Where("cust_id = ?", msg.CustomerID).First(&customer).Error; err != nil {
		return NotificationResult{Err: fmt.Errorf("failed to load customer %s: %w", msg.CustomerID, err)}
	}
	if customer.CustContact == nil || *customer.CustContact == "" {
		return NotificationResult{Err: errNoContact}
	}

	params := &twilioApi.CreateMessageParams{}
	params.SetTo(*customer.CustContact)
	params.SetFrom(n.from)
	params.SetBody(msg.Title + "\n" + msg.Body)

	resp, err := n.sender.CreateMessage(params)
	if err != nil {
		return NotificationResult{Err: fmt.Errorf("failed to send SMS: %w", err)}
	}
	if resp != nil && resp.Sid != nil {
		log.Printf("[notify] message sent to customer %s, SID: %s", msg.CustomerID, *resp.Sid)
	}
	return NotificationResult{Delivered: true}
}

// NoopNotifier drops every notification. Used when Twilio is not configured.
type NoopNotifier struct{}

func (NoopNotifier) Notify(_ context.Context, msg Notification) NotificationResult {
	log.Printf("[notify] push disabled, dropping %q for customer %s", msg.Title, msg.CustomerID)
	return NotificationResult{}
}
