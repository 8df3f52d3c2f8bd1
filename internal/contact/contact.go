// Package contact relays messages sent from a public portfolio page to
// the portfolio's owner.
package contact

import (
	"fmt"
	"net/http"
	"strings"

	"portfolio-service/internal/logger"
	"portfolio-service/internal/mail"

	"github.com/gin-gonic/gin"
	validation "github.com/go-ozzo/ozzo-validation"
)

type Message struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Message        string `json:"message"`
	RecipientID    string `json:"recipientId"`
	RecipientEmail string `json:"recipientEmail"`
}

func (m Message) normalized() Message {
	m.Name = strings.TrimSpace(m.Name)
	m.Email = strings.TrimSpace(m.Email)
	m.Message = strings.TrimSpace(m.Message)
	m.RecipientID = strings.TrimSpace(m.RecipientID)
	m.RecipientEmail = strings.TrimSpace(m.RecipientEmail)
	return m
}

func (m Message) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.Name, validation.Required),
		validation.Field(&m.Email, validation.Required),
		validation.Field(&m.Message, validation.Required),
		validation.Field(&m.RecipientID, validation.Required),
		validation.Field(&m.RecipientEmail, validation.Required),
	)
}

type Handler struct {
	mailer mail.Mailer
}

func NewHandler(mailer mail.Mailer) *Handler {
	return &Handler{mailer: mailer}
}

func (h *Handler) RegisterRoutes(r gin.IRouter) {
	r.POST("/api/contact", h.send)
}

func (h *Handler) send(c *gin.Context) {
	var msg Message
	if err := c.ShouldBindJSON(&msg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	msg = msg.normalized()

	if err := msg.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields"})
		return
	}

	err := h.mailer.Send(c.Request.Context(), mail.Message{
		To:      msg.RecipientEmail,
		ReplyTo: msg.Email,
		Subject: fmt.Sprintf("New message from %s via your portfolio", msg.Name),
		Body:    fmt.Sprintf("From: %s (%s)\n\n%s", msg.Name, msg.Email, msg.Message),
	})
	if err != nil {
		logger.Error("failed to send contact message", map[string]any{
			"recipient_id": msg.RecipientID,
			"error":        err,
		})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to send message"})
		return
	}

	logger.Info("contact message sent", map[string]any{
		"recipient_id": msg.RecipientID,
	})
	c.JSON(http.StatusOK, gin.H{"success": true})
}
