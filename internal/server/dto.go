package server

import (
	"printline/internal/domain"
	"printline/internal/engine"
)

// Request payloads

type CreateClientRequest struct {
	ID      *string `json:"id,omitempty"`
	Name    string  `json:"name"`
	Company *string `json:"company,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
}

type UpdateClientRequest struct {
	Name    *string `json:"name,omitempty"`
	Company *string `json:"company,omitempty"`
	Phone   *string `json:"phone,omitempty"`
	Email   *string `json:"email,omitempty"`
}

type CreateOrderRequest struct {
	ID          *string `json:"id,omitempty"`
	ClientID    string  `json:"client_id"`
	Description *string `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty"`
}

type CreateJobRequest struct {
	ID       *string `json:"id,omitempty"`
	OrderID  string  `json:"order_id"`
	Type     string  `json:"type" enum:"design,print,press,cut,sew,qc,iron"`
	Priority *int    `json:"priority,omitempty"`
	DueDate  *string `json:"due_date,omitempty"`
}

type CreateDesignRequest struct {
	ID       *string `json:"id,omitempty"`
	OrderID  string  `json:"order_id"`
	Title    string  `json:"title"`
	Priority *int    `json:"priority,omitempty"`
	DueDate  *string `json:"due_date,omitempty"`
}

type CreatePaymentRequest struct {
	ID          *string `json:"id,omitempty"`
	OrderID     string  `json:"order_id"`
	AmountCents int64   `json:"amount_cents"`
}

// TransitionRequest asks the workflow engine to move an entity to Target.
// ExpectedStatus, when set, must match the persisted status at commit time.
type TransitionRequest struct {
	Target         string  `json:"target"`
	ExpectedStatus *string `json:"expected_status,omitempty"`
	ApproverID     *string `json:"approver_id,omitempty"`
	Reason         *string `json:"reason,omitempty"`
	Feedback       *string `json:"feedback,omitempty"`
}

type CreateStaffRequest struct {
	ID         *string `json:"id,omitempty"`
	Name       string  `json:"name"`
	Role       *string `json:"role,omitempty"`
	Department *string `json:"department,omitempty"`
}

type UpdateStaffRequest struct {
	Role       *string `json:"role,omitempty"`
	Department *string `json:"department,omitempty"`
}

type CreateAPIKeyRequest struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
}

type DevLoginRequest struct {
	ActorID string `json:"actor_id"`
}

// Response payloads

type DevLoginResponse struct {
	Token string `json:"token"`
}

type WhoAmIResponse struct {
	Actor        domain.Actor `json:"actor"`
	Source       string       `json:"source" enum:"jwt,api_key,legacy_header"`
	Capabilities []string     `json:"capabilities"`
}

// APIKeyCreatedResponse is the only place the plaintext key is ever returned.
type APIKeyCreatedResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	Key       string `json:"key"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type APIKeyResponse struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type AlertsResponse struct {
	Items []engine.DueAlert `json:"items"`
}

type paginatedClients struct {
	Items      []domain.Client `json:"items"`
	NextCursor string          `json:"next_cursor,omitempty"`
}

type paginatedOrders struct {
	Items      []domain.Order `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

type paginatedJobs struct {
	Items      []domain.Job `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type paginatedDesigns struct {
	Items      []domain.DesignProject `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

type paginatedPayments struct {
	Items      []domain.PaymentRecord `json:"items"`
	NextCursor string                 `json:"next_cursor,omitempty"`
}

type paginatedEvents struct {
	Items      []domain.Event `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}

func intOrZero(ptr *int) int {
	if ptr == nil {
		return 0
	}
	return *ptr
}
