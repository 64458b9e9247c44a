package models

// ChatRole identifies who wrote a chatbot message.
type ChatRole string

const (
	ChatRoleUser  ChatRole = "user"
	ChatRoleModel ChatRole = "model"
)

// ChatMessage is one turn of a user's conversation with the health chatbot.
type ChatMessage struct {
	BaseModel
	UserID  string   `gorm:"size:36;index" json:"userId"`
	Role    ChatRole `gorm:"size:10;not null" json:"role"`
	Content string   `gorm:"type:text;not null" json:"content"`

	User User `gorm:"foreignKey:UserID" json:"-"`
}
