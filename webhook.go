package tgrelay

import (
	"encoding/json"
	"fmt"
	"net/url"

	log "github.com/sirupsen/logrus"
)

// AllUpdateTypes lists every update kind, so Telegram doesn't fall back to its default subset
var AllUpdateTypes = []string{
	"message",
	"edited_message",
	"channel_post",
	"edited_channel_post",
	"business_connection",
	"business_message",
	"edited_business_message",
	"deleted_business_messages",
	"message_reaction",
	"message_reaction_count",
	"inline_query",
	"chosen_inline_result",
	"callback_query",
	"shipping_query",
	"pre_checkout_query",
	"purchased_paid_media",
	"poll",
	"poll_answer",
	"my_chat_member",
	"chat_member",
	"chat_join_request",
	"chat_boost",
	"removed_chat_boost",
}

// RegisterWebhook points the bot to CallbackURL and declares the secret token
// that Telegram will send back in the X-Telegram-Bot-Api-Secret-Token header
func RegisterWebhook(api BotAPI, c *Config) error {
	allowed, err := json.Marshal(AllUpdateTypes)
	if err != nil {
		return err
	}

	params := url.Values{}
	params.Set("url", c.CallbackURL())
	params.Set("allowed_updates", string(allowed))
	params.Set("secret_token", c.CallbackSecret)

	resp, err := api.MakeRequest("setWebhook", params)
	if err != nil {
		return fmt.Errorf("setWebhook: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("setWebhook: %s", resp.Description)
	}

	log.WithField("url", c.CallbackURL()).Info("Webhook registered")
	return nil
}

// DeleteWebhook removes the webhook registration of the bot
func DeleteWebhook(api BotAPI) error {
	resp, err := api.MakeRequest("deleteWebhook", url.Values{})
	if err != nil {
		return fmt.Errorf("deleteWebhook: %w", err)
	}
	if !resp.Ok {
		return fmt.Errorf("deleteWebhook: %s", resp.Description)
	}

	log.Info("Webhook deleted")
	return nil
}
