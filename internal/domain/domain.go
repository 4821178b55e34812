package domain

// Entity kind identifiers used by the event log and the workflow engine.
const (
	KindJob     = "job"
	KindDesign  = "design"
	KindPayment = "payment"
)

// Job statuses.
const (
	JobPending    = "pending"
	JobInProgress = "in_progress"
	JobCompleted  = "completed"
	JobOnHold     = "on_hold"
)

// Design project statuses.
const (
	DesignNew        = "new"
	DesignInProgress = "in_progress"
	DesignReview     = "review"
	DesignFinalized  = "finalized"
	DesignOnHold     = "on_hold"
	DesignCompleted  = "completed"
	DesignRejected   = "rejected"
)

// Payment statuses.
const (
	PaymentPending  = "pending"
	PaymentApproved = "approved"
	PaymentRejected = "rejected"
)

// Actor is the identity a workflow transition is attempted under. Role is
// the primary capability selector; department is the coarser fallback.
type Actor struct {
	ID         string `json:"id"`
	Name       string `json:"name,omitempty"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
}

type Shop struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Client struct {
	ID        string `json:"id"`
	ShopID    string `json:"shop_id"`
	Name      string `json:"name"`
	Company   string `json:"company,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Email     string `json:"email,omitempty"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type Order struct {
	ID          string  `json:"id"`
	ShopID      string  `json:"shop_id"`
	ClientID    string  `json:"client_id"`
	Description string  `json:"description,omitempty"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
}

// Job is a single production step on the shop floor. StartTime, EndTime and
// DurationMinutes are stamped by the workflow engine, never set directly:
// DurationMinutes is present exactly when both endpoints are, and is clamped
// to zero (with FlaggedForReview set) when clock skew yields a negative span.
type Job struct {
	ID               string  `json:"id"`
	ShopID           string  `json:"shop_id"`
	OrderID          string  `json:"order_id"`
	Type             string  `json:"type" enum:"design,print,press,cut,sew,qc,iron"`
	Status           string  `json:"status" enum:"pending,in_progress,completed,on_hold"`
	StartTime        *string `json:"start_time,omitempty" format:"date-time"`
	EndTime          *string `json:"end_time,omitempty" format:"date-time"`
	DurationMinutes  *int    `json:"duration_minutes,omitempty"`
	Priority         int     `json:"priority"`
	Progress         int     `json:"progress"`
	DueDate          *string `json:"due_date,omitempty" format:"date-time"`
	FlaggedForReview bool    `json:"flagged_for_review,omitempty"`
	CreatedAt        string  `json:"created_at" format:"date-time"`
	UpdatedAt        string  `json:"updated_at" format:"date-time"`
}

// DesignProject tracks the artwork approval workflow for an order. HeldFrom
// remembers the status a held project must resume into.
type DesignProject struct {
	ID          string  `json:"id"`
	ShopID      string  `json:"shop_id"`
	OrderID     string  `json:"order_id"`
	Title       string  `json:"title"`
	Status      string  `json:"status" enum:"new,in_progress,review,finalized,on_hold,completed,rejected"`
	Priority    int     `json:"priority"`
	Progress    int     `json:"progress"`
	DueDate     *string `json:"due_date,omitempty" format:"date-time"`
	SubmittedAt *string `json:"submitted_at,omitempty" format:"date-time"`
	FinalizedAt *string `json:"finalized_at,omitempty" format:"date-time"`
	CompletedAt *string `json:"completed_at,omitempty" format:"date-time"`
	Feedback    *string `json:"feedback,omitempty"`
	HeldFrom    *string `json:"held_from,omitempty"`
	CreatedAt   string  `json:"created_at" format:"date-time"`
	UpdatedAt   string  `json:"updated_at" format:"date-time"`
}

// PaymentRecord is an approval-gated payment against an order. Approved and
// rejected are both terminal: no transition leaves either status.
type PaymentRecord struct {
	ID             string  `json:"id"`
	ShopID         string  `json:"shop_id"`
	OrderID        string  `json:"order_id"`
	AmountCents    int64   `json:"amount_cents"`
	Status         string  `json:"status" enum:"pending,approved,rejected"`
	ApprovedBy     *string `json:"approved_by,omitempty"`
	ApprovedAt     *string `json:"approved_at,omitempty" format:"date-time"`
	RejectedReason *string `json:"rejected_reason,omitempty"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
	UpdatedAt      string  `json:"updated_at" format:"date-time"`
}

// Staff is the persisted record behind an Actor.
type Staff struct {
	ID         string `json:"id"`
	ShopID     string `json:"shop_id"`
	Name       string `json:"name"`
	Role       string `json:"role,omitempty"`
	Department string `json:"department,omitempty"`
	CreatedAt  string `json:"created_at" format:"date-time"`
}

// Actor returns the capability-resolution view of a staff record.
func (s Staff) Actor() Actor {
	return Actor{ID: s.ID, Name: s.Name, Role: s.Role, Department: s.Department}
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	ShopID     string `json:"shop_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
