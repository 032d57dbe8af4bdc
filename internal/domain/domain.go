package domain

// Role of a marketplace user. The engine trusts the (actor id, role) tuple
// supplied by the identity layer.
type Role string

const (
	RoleStudent    Role = "student"
	RoleSupervisor Role = "supervisor"
	RoleAdmin      Role = "admin"
)

// Valid reports whether r is one of the three known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleSupervisor, RoleAdmin:
		return true
	}
	return false
}

// Actor is the authenticated caller of a command or query.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
	StatusRejected = "rejected"
	StatusAnswered = "answered"
)

// AssignmentTypes is the closed set of work kinds a request may carry.
var AssignmentTypes = []string{
	"essay",
	"dissertation_qualitative",
	"dissertation_quantitative",
	"statistical_analysis",
	"paraphrase",
	"ai_detection",
	"translation",
}

// KnownAssignmentType reports whether t is in AssignmentTypes.
func KnownAssignmentType(t string) bool {
	for _, known := range AssignmentTypes {
		if t == known {
			return true
		}
	}
	return false
}

type User struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	Role         Role   `json:"role" enum:"student,supervisor,admin"`
	PasswordHash string `json:"-"`
	Active       bool   `json:"active"`
	CreatedAt    string `json:"created_at" format:"date-time"`
}

type EssayRequest struct {
	ID                 string  `json:"id"`
	StudentID          string  `json:"student_id"`
	Title              string  `json:"title"`
	DueDate            string  `json:"due_date" format:"date-time"`
	WordCount          int     `json:"word_count"`
	AssignmentType     string  `json:"assignment_type"`
	FieldOfStudy       string  `json:"field_of_study"`
	ExtraInformation   string  `json:"extra_information,omitempty"`
	Status             string  `json:"status" enum:"pending,accepted,rejected"`
	AssignedSupervisor *string `json:"assigned_supervisor,omitempty"`
	CreatedAt          string  `json:"created_at" format:"date-time"`
}

type Bid struct {
	ID           string  `json:"id"`
	RequestID    string  `json:"request_id"`
	SupervisorID string  `json:"supervisor_id"`
	Price        float64 `json:"price"`
	Notes        string  `json:"notes,omitempty"`
	Status       string  `json:"status" enum:"pending,accepted,rejected"`
	CreatedAt    string  `json:"created_at" format:"date-time"`
}

type AdminPrice struct {
	ID        string  `json:"id"`
	RequestID string  `json:"request_id"`
	Price     float64 `json:"price"`
	SetBy     string  `json:"set_by"`
	CreatedAt string  `json:"created_at" format:"date-time"`
}

type ChatMessage struct {
	ID         string  `json:"id"`
	RequestID  string  `json:"request_id"`
	SenderID   string  `json:"sender_id"`
	ReceiverID string  `json:"receiver_id"`
	Body       string  `json:"body"`
	Approved   bool    `json:"approved"`
	ApprovedBy *string `json:"approved_by,omitempty"`
	ApprovedAt *string `json:"approved_at,omitempty" format:"date-time"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type Question struct {
	ID         string  `json:"id"`
	AuthorID   string  `json:"author_id"`
	Title      string  `json:"title"`
	Body       string  `json:"body"`
	Category   string  `json:"category"`
	Status     string  `json:"status" enum:"pending,answered"`
	Answer     *string `json:"answer,omitempty"`
	AnsweredBy *string `json:"answered_by,omitempty"`
	AnsweredAt *string `json:"answered_at,omitempty" format:"date-time"`
	CreatedAt  string  `json:"created_at" format:"date-time"`
}

type Notification struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Kind      string `json:"kind"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// Session backs the opaque tokens handed out at login. Only the SHA-256
// hash of the token is stored.
type Session struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	TokenHash string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}
