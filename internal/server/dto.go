package server

import "essaybid/internal/domain"

// Request payloads

type RegisterRequest struct {
	Email    string `json:"email" format:"email"`
	Name     string `json:"name"`
	Role     string `json:"role" enum:"student,supervisor"`
	Password string `json:"password" minLength:"8"`
}

type LoginRequest struct {
	Email    string `json:"email" format:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Token string      `json:"token"`
	User  domain.User `json:"user"`
}

type CreateUserRequest struct {
	Email    string `json:"email" format:"email"`
	Name     string `json:"name"`
	Role     string `json:"role" enum:"student,supervisor,admin"`
	Password string `json:"password" minLength:"8"`
}

type UpdateUserRequest struct {
	Name     *string `json:"name,omitempty"`
	Role     *string `json:"role,omitempty" enum:"student,supervisor,admin"`
	Active   *bool   `json:"active,omitempty"`
	Password *string `json:"password,omitempty" minLength:"8"`
}

type CreateRequestRequest struct {
	Title            string `json:"title"`
	DueDate          string `json:"due_date" format:"date-time"`
	WordCount        int    `json:"word_count" minimum:"1"`
	AssignmentType   string `json:"assignment_type"`
	FieldOfStudy     string `json:"field_of_study"`
	ExtraInformation string `json:"extra_information,omitempty"`
}

type UpdateRequestRequest struct {
	Title            *string `json:"title,omitempty"`
	DueDate          *string `json:"due_date,omitempty" format:"date-time"`
	WordCount        *int    `json:"word_count,omitempty" minimum:"1"`
	AssignmentType   *string `json:"assignment_type,omitempty"`
	FieldOfStudy     *string `json:"field_of_study,omitempty"`
	ExtraInformation *string `json:"extra_information,omitempty"`
}

type AssignSupervisorRequest struct {
	SupervisorID string `json:"supervisor_id"`
}

type CreateBidRequest struct {
	RequestID string  `json:"request_id"`
	Price     float64 `json:"price" exclusiveMinimum:"0"`
	Notes     string  `json:"notes,omitempty"`
}

type SetBidStatusRequest struct {
	Status string `json:"status" enum:"accepted,rejected"`
}

type SetPriceRequest struct {
	RequestID string  `json:"request_id"`
	Price     float64 `json:"price" exclusiveMinimum:"0"`
}

type SendMessageRequest struct {
	RequestID string `json:"request_id"`
	Body      string `json:"body"`
}

type AskQuestionRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
}

type AnswerQuestionRequest struct {
	Answer string `json:"answer"`
}
