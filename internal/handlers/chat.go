package handlers

import (
	"slices"
	"time"

	"maternity-companion-server/internal/assistant"
	"maternity-companion-server/internal/middleware"
	"maternity-companion-server/internal/models"
	"maternity-companion-server/internal/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// chatHistoryWindow is how many prior messages are sent with a question.
const chatHistoryWindow = 20

// ChatHandler handles the health chatbot conversation.
type ChatHandler struct {
	Deps
	Assistant *assistant.Service
}

// NewChatHandler creates a new ChatHandler.
func NewChatHandler(deps Deps, svc *assistant.Service) *ChatHandler {
	return &ChatHandler{Deps: deps, Assistant: svc}
}

// GetHistory returns the conversation oldest first.
func (h *ChatHandler) GetHistory(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	messages, err := chatHistory(h.DB, userID, listLimit(c))
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch chat history: "+err.Error())
		return
	}
	utils.Success(c, "Chat history fetched successfully", messages)
}

// SendMessageRequest is a question for the chatbot.
type SendMessageRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// SendMessageResponse holds both stored turns.
type SendMessageResponse struct {
	Question models.ChatMessage `json:"question"`
	Answer   models.ChatMessage `json:"answer"`
}

// SendMessage answers a question in the context of recent history and
// stores both turns. Nothing is stored when the assistant fails.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req SendMessageRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	history, err := chatHistory(h.DB, userID, chatHistoryWindow)
	if err != nil {
		utils.InternalServerError(c, "Failed to fetch chat history: "+err.Error())
		return
	}
	turns := make([]assistant.Turn, len(history))
	for i, m := range history {
		turns[i] = assistant.Turn{Role: string(m.Role), Content: m.Content}
	}

	answer, err := h.Assistant.Chat(c.Request.Context(), turns, req.Message)
	if err != nil {
		h.respondAssistantError(c, err)
		return
	}

	// Keep the stored conversation strictly ordered even if the clock stalls.
	asked := h.now()
	if n := len(history); n > 0 && !asked.After(history[n-1].CreatedAt) {
		asked = history[n-1].CreatedAt.Add(time.Millisecond)
	}
	resp := SendMessageResponse{
		Question: models.ChatMessage{UserID: userID, Role: models.ChatRoleUser, Content: req.Message},
		Answer:   models.ChatMessage{UserID: userID, Role: models.ChatRoleModel, Content: answer},
	}
	resp.Question.CreatedAt = asked
	resp.Answer.CreatedAt = asked.Add(time.Millisecond)

	err = h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&resp.Question).Error; err != nil {
			return err
		}
		return tx.Create(&resp.Answer).Error
	})
	if err != nil {
		h.Logger.Error("Failed to store chat messages", zap.String("user_id", userID), zap.Error(err))
		utils.InternalServerError(c, "Failed to save chat messages: "+err.Error())
		return
	}

	utils.Created(c, "Message sent successfully", resp)
}

// ClearHistory deletes the user's whole conversation.
func (h *ChatHandler) ClearHistory(c *gin.Context) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		utils.Unauthorized(c, "User not authenticated")
		return
	}

	result := h.DB.Where("user_id = ?", userID).Delete(&models.ChatMessage{})
	if result.Error != nil {
		utils.InternalServerError(c, "Failed to clear chat history: "+result.Error.Error())
		return
	}
	utils.Success(c, "Chat history cleared", gin.H{"deleted": result.RowsAffected})
}

// chatHistory returns the last limit messages, oldest first.
func chatHistory(db *gorm.DB, userID string, limit int) ([]models.ChatMessage, error) {
	messages := []models.ChatMessage{}
	err := db.Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limit).Find(&messages).Error
	if err != nil {
		return nil, err
	}
	slices.Reverse(messages)
	return messages, nil
}
