package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"gopkg.in/yaml.v3"

	"printline/internal/domain"
	"printline/internal/engine"
	"printline/internal/repo"
	"printline/internal/workflow"
)

var writeErrors = []int{
	http.StatusBadRequest,
	http.StatusUnauthorized,
	http.StatusForbidden,
	http.StatusNotFound,
	http.StatusConflict,
	http.StatusUnprocessableEntity,
	http.StatusInternalServerError,
}

func requireCapability(ctx context.Context, e engine.Engine, capability string) (domain.Actor, huma.StatusError) {
	actor, authErr := actorFromContext(ctx)
	if authErr != nil {
		return domain.Actor{}, authErr
	}
	if !e.Perms.HasCapability(actor, capability) {
		return domain.Actor{}, handleError(workflow.PermissionDeniedError{Capability: capability})
	}
	return actor, nil
}

func shopOrDefault(query string, e engine.Engine) string {
	if query != "" {
		return query
	}
	return e.Config.Shop.ID
}

func registerClients(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-client",
		Method:        http.MethodPost,
		Path:          "/clients",
		Summary:       "Register client",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.CreateClient(ctx, engine.ClientCreateOptions{
			ID:      stringOrEmpty(input.Body.ID),
			ShopID:  e.Config.Shop.ID,
			Name:    input.Body.Name,
			Company: stringOrEmpty(input.Body.Company),
			Phone:   stringOrEmpty(input.Body.Phone),
			Email:   stringOrEmpty(input.Body.Email),
			Actor:   actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-clients",
		Method:      http.MethodGet,
		Path:        "/clients",
		Summary:     "List clients",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Shop   string `query:"shop"`
		Search string `query:"search"`
		Limit  int    `query:"limit" default:"50"`
		Cursor string `query:"cursor"`
	}) (*struct {
		Body paginatedClients `json:"body"`
	}, error) {
		if _, authErr := requireCapability(ctx, e, "clients.read"); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.Repo.ListClients(ctx, repo.ClientFilters{
			ShopID:          shopOrDefault(input.Shop, e),
			Search:          input.Search,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedClients{}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].CreatedAt, items[limit].ID)
			items = items[:limit]
		}
		resp.Items = nonNilSlice(items)
		return &struct {
			Body paginatedClients `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-client",
		Method:      http.MethodGet,
		Path:        "/clients/{id}",
		Summary:     "Get client",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		if _, authErr := requireCapability(ctx, e, "clients.read"); authErr != nil {
			return nil, authErr
		}
		c, err := e.Repo.GetClient(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-client",
		Method:      http.MethodPatch,
		Path:        "/clients/{id}",
		Summary:     "Update client",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string              `path:"id"`
		Body UpdateClientRequest `json:"body"`
	}) (*struct {
		Body domain.Client `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		c, err := e.UpdateClient(ctx, engine.ClientUpdateOptions{
			ID:      input.ID,
			Name:    input.Body.Name,
			Company: input.Body.Company,
			Phone:   input.Body.Phone,
			Email:   input.Body.Email,
			Actor:   actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Client `json:"body"`
		}{Body: c}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-client",
		Method:      http.MethodDelete,
		Path:        "/clients/{id}",
		Summary:     "Delete client",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteClient(ctx, input.ID, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerOrders(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-order",
		Method:        http.MethodPost,
		Path:          "/orders",
		Summary:       "Open order",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateOrderRequest `json:"body"`
	}) (*struct {
		Body domain.Order `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := e.CreateOrder(ctx, engine.OrderCreateOptions{
			ID:          stringOrEmpty(input.Body.ID),
			ShopID:      e.Config.Shop.ID,
			ClientID:    input.Body.ClientID,
			Description: stringOrEmpty(input.Body.Description),
			DueDate:     stringOrEmpty(input.Body.DueDate),
			Actor:       actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Order `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-orders",
		Method:      http.MethodGet,
		Path:        "/orders",
		Summary:     "List orders",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Shop     string `query:"shop"`
		ClientID string `query:"client_id"`
		Limit    int    `query:"limit" default:"50"`
		Cursor   string `query:"cursor"`
	}) (*struct {
		Body paginatedOrders `json:"body"`
	}, error) {
		if _, authErr := requireCapability(ctx, e, "orders.read"); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.Repo.ListOrders(ctx, repo.OrderFilters{
			ShopID:          shopOrDefault(input.Shop, e),
			ClientID:        input.ClientID,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedOrders{}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].CreatedAt, items[limit].ID)
			items = items[:limit]
		}
		resp.Items = nonNilSlice(items)
		return &struct {
			Body paginatedOrders `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-order",
		Method:      http.MethodGet,
		Path:        "/orders/{id}",
		Summary:     "Get order",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Order `json:"body"`
	}, error) {
		if _, authErr := requireCapability(ctx, e, "orders.read"); authErr != nil {
			return nil, authErr
		}
		o, err := e.Repo.GetOrder(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Order `json:"body"`
		}{Body: o}, nil
	})
}

func registerJobs(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-job",
		Method:        http.MethodPost,
		Path:          "/jobs",
		Summary:       "Schedule job",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateJobRequest `json:"body"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		j, err := e.CreateJob(ctx, engine.JobCreateOptions{
			ID:       stringOrEmpty(input.Body.ID),
			OrderID:  input.Body.OrderID,
			Type:     input.Body.Type,
			Priority: intOrZero(input.Body.Priority),
			DueDate:  stringOrEmpty(input.Body.DueDate),
			Actor:    actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-jobs",
		Method:      http.MethodGet,
		Path:        "/jobs",
		Summary:     "List jobs",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Shop    string `query:"shop"`
		OrderID string `query:"order_id"`
		Status  string `query:"status" enum:",pending,in_progress,completed,on_hold"`
		Type    string `query:"type"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body paginatedJobs `json:"body"`
	}, error) {
		if _, authErr := requireCapability(ctx, e, "jobs.read"); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.Repo.ListJobs(ctx, repo.JobFilters{
			ShopID:          shopOrDefault(input.Shop, e),
			OrderID:         input.OrderID,
			Status:          input.Status,
			Type:            input.Type,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedJobs{}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].CreatedAt, items[limit].ID)
			items = items[:limit]
		}
		resp.Items = nonNilSlice(items)
		return &struct {
			Body paginatedJobs `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-job",
		Method:      http.MethodGet,
		Path:        "/jobs/{id}",
		Summary:     "Get job",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		if _, authErr := requireCapability(ctx, e, "jobs.read"); authErr != nil {
			return nil, authErr
		}
		j, err := e.Repo.GetJob(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: j}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-job",
		Method:      http.MethodPost,
		Path:        "/jobs/{id}/transition",
		Summary:     "Transition job",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body TransitionRequest `json:"body"`
	}) (*struct {
		Body domain.Job `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts, badReq := transitionOptions(input.ID, input.Body, actor)
		if badReq != nil {
			return nil, badReq
		}
		j, err := e.TransitionJob(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Job `json:"body"`
		}{Body: j}, nil
	})
}

func registerDesigns(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-design",
		Method:        http.MethodPost,
		Path:          "/designs",
		Summary:       "Open design project",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateDesignRequest `json:"body"`
	}) (*struct {
		Body domain.DesignProject `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		d, err := e.CreateDesign(ctx, engine.DesignCreateOptions{
			ID:       stringOrEmpty(input.Body.ID),
			OrderID:  input.Body.OrderID,
			Title:    input.Body.Title,
			Priority: intOrZero(input.Body.Priority),
			DueDate:  stringOrEmpty(input.Body.DueDate),
			Actor:    actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DesignProject `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-designs",
		Method:      http.MethodGet,
		Path:        "/designs",
		Summary:     "List design projects",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Shop    string `query:"shop"`
		OrderID string `query:"order_id"`
		Status  string `query:"status" enum:",new,in_progress,review,finalized,on_hold,completed,rejected"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body paginatedDesigns `json:"body"`
	}, error) {
		if _, authErr := requireCapability(ctx, e, "designs.read"); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.Repo.ListDesigns(ctx, repo.DesignFilters{
			ShopID:          shopOrDefault(input.Shop, e),
			OrderID:         input.OrderID,
			Status:          input.Status,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedDesigns{}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].CreatedAt, items[limit].ID)
			items = items[:limit]
		}
		resp.Items = nonNilSlice(items)
		return &struct {
			Body paginatedDesigns `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-design",
		Method:      http.MethodGet,
		Path:        "/designs/{id}",
		Summary:     "Get design project",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.DesignProject `json:"body"`
	}, error) {
		if _, authErr := requireCapability(ctx, e, "designs.read"); authErr != nil {
			return nil, authErr
		}
		d, err := e.Repo.GetDesign(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DesignProject `json:"body"`
		}{Body: d}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-design",
		Method:      http.MethodPost,
		Path:        "/designs/{id}/transition",
		Summary:     "Transition design project",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body TransitionRequest `json:"body"`
	}) (*struct {
		Body domain.DesignProject `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts, badReq := transitionOptions(input.ID, input.Body, actor)
		if badReq != nil {
			return nil, badReq
		}
		d, err := e.TransitionDesign(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.DesignProject `json:"body"`
		}{Body: d}, nil
	})
}

func registerPayments(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-payment",
		Method:        http.MethodPost,
		Path:          "/payments",
		Summary:       "Record payment",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreatePaymentRequest `json:"body"`
	}) (*struct {
		Body domain.PaymentRecord `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := e.CreatePayment(ctx, engine.PaymentCreateOptions{
			ID:          stringOrEmpty(input.Body.ID),
			OrderID:     input.Body.OrderID,
			AmountCents: input.Body.AmountCents,
			Actor:       actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PaymentRecord `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-payments",
		Method:      http.MethodGet,
		Path:        "/payments",
		Summary:     "List payments",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Shop    string `query:"shop"`
		OrderID string `query:"order_id"`
		Status  string `query:"status" enum:",pending,approved,rejected"`
		Limit   int    `query:"limit" default:"50"`
		Cursor  string `query:"cursor"`
	}) (*struct {
		Body paginatedPayments `json:"body"`
	}, error) {
		if _, authErr := requireCapability(ctx, e, "payments.read"); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		cursorCreated, cursorID, err := parseCompositeCursor(input.Cursor)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "invalid cursor", map[string]any{"cursor": input.Cursor})
		}
		items, err := e.Repo.ListPayments(ctx, repo.PaymentFilters{
			ShopID:          shopOrDefault(input.Shop, e),
			OrderID:         input.OrderID,
			Status:          input.Status,
			Limit:           limit + 1,
			CursorCreatedAt: cursorCreated,
			CursorID:        cursorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedPayments{}
		if len(items) > limit {
			resp.NextCursor = composeCursor(items[limit].CreatedAt, items[limit].ID)
			items = items[:limit]
		}
		resp.Items = nonNilSlice(items)
		return &struct {
			Body paginatedPayments `json:"body"`
		}{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-payment",
		Method:      http.MethodGet,
		Path:        "/payments/{id}",
		Summary:     "Get payment",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body domain.PaymentRecord `json:"body"`
	}, error) {
		if _, authErr := requireCapability(ctx, e, "payments.read"); authErr != nil {
			return nil, authErr
		}
		p, err := e.Repo.GetPayment(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PaymentRecord `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "transition-payment",
		Method:      http.MethodPost,
		Path:        "/payments/{id}/transition",
		Summary:     "Approve or reject payment",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string            `path:"id"`
		Body TransitionRequest `json:"body"`
	}) (*struct {
		Body domain.PaymentRecord `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		opts, badReq := transitionOptions(input.ID, input.Body, actor)
		if badReq != nil {
			return nil, badReq
		}
		// Approvals default the approver to the authenticated actor.
		if opts.Payload.ApproverID == "" {
			opts.Payload.ApproverID = actor.ID
		}
		p, err := e.TransitionPayment(ctx, opts)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.PaymentRecord `json:"body"`
		}{Body: p}, nil
	})
}

func transitionOptions(id string, body TransitionRequest, actor domain.Actor) (engine.TransitionOptions, huma.StatusError) {
	target := strings.TrimSpace(body.Target)
	if target == "" {
		return engine.TransitionOptions{}, newAPIError(http.StatusBadRequest, "bad_request", "target is required", nil)
	}
	return engine.TransitionOptions{
		ID:             id,
		Target:         target,
		ExpectedStatus: stringOrEmpty(body.ExpectedStatus),
		Actor:          actor,
		Payload: workflow.Payload{
			ApproverID: stringOrEmpty(body.ApproverID),
			Reason:     stringOrEmpty(body.Reason),
			Feedback:   stringOrEmpty(body.Feedback),
		},
	}, nil
}

func registerAlerts(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-alerts",
		Method:      http.MethodGet,
		Path:        "/alerts",
		Summary:     "Deadline alerts",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Shop string `query:"shop"`
	}) (*struct {
		Body AlertsResponse `json:"body"`
	}, error) {
		if _, authErr := requireCapability(ctx, e, "alerts.read"); authErr != nil {
			return nil, authErr
		}
		alerts, err := e.DueAlerts(ctx, shopOrDefault(input.Shop, e))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body AlertsResponse `json:"body"`
		}{Body: AlertsResponse{Items: nonNilSlice(alerts)}}, nil
	})
}

func registerStaff(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-staff",
		Method:        http.MethodPost,
		Path:          "/staff",
		Summary:       "Add staff member",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateStaffRequest `json:"body"`
	}) (*struct {
		Body domain.Staff `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.CreateStaff(ctx, engine.StaffCreateOptions{
			ID:         stringOrEmpty(input.Body.ID),
			ShopID:     e.Config.Shop.ID,
			Name:       input.Body.Name,
			Role:       stringOrEmpty(input.Body.Role),
			Department: stringOrEmpty(input.Body.Department),
			Actor:      actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Staff `json:"body"`
		}{Body: s}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-staff",
		Method:      http.MethodGet,
		Path:        "/staff",
		Summary:     "List staff",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Shop string `query:"shop"`
	}) (*struct {
		Body struct {
			Items []domain.Staff `json:"items"`
		} `json:"body"`
	}, error) {
		if _, authErr := requireCapability(ctx, e, "staff.manage"); authErr != nil {
			return nil, authErr
		}
		items, err := e.Repo.ListStaff(ctx, shopOrDefault(input.Shop, e))
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Items []domain.Staff `json:"items"`
			} `json:"body"`
		}{}
		out.Body.Items = nonNilSlice(items)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-staff",
		Method:      http.MethodPatch,
		Path:        "/staff/{id}",
		Summary:     "Reassign staff member",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID   string             `path:"id"`
		Body UpdateStaffRequest `json:"body"`
	}) (*struct {
		Body domain.Staff `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := e.UpdateStaff(ctx, engine.StaffUpdateOptions{
			ID:         input.ID,
			Role:       input.Body.Role,
			Department: input.Body.Department,
			Actor:      actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Staff `json:"body"`
		}{Body: s}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Audit log",
		Errors:      []int{http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		Shop       string `query:"shop"`
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
		Cursor     int64  `query:"cursor"`
	}) (*struct {
		Body paginatedEvents `json:"body"`
	}, error) {
		if _, authErr := requireCapability(ctx, e, "events.read"); authErr != nil {
			return nil, authErr
		}
		limit := normalizeLimit(input.Limit)
		items, err := e.Repo.LatestEventsFrom(ctx, limit+1, input.Cursor,
			shopOrDefault(input.Shop, e), input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		resp := paginatedEvents{}
		if len(items) > limit {
			items = items[:limit]
			resp.NextCursor = fmt.Sprint(items[limit-1].ID)
		}
		resp.Items = nonNilSlice(items)
		return &struct {
			Body paginatedEvents `json:"body"`
		}{Body: resp}, nil
	})
}

func registerAPIKeys(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-api-key",
		Method:        http.MethodPost,
		Path:          "/keys",
		Summary:       "Mint API key",
		DefaultStatus: http.StatusCreated,
		Errors:        writeErrors,
	}, func(ctx context.Context, input *struct {
		Body CreateAPIKeyRequest `json:"body"`
	}) (*struct {
		Body APIKeyCreatedResponse `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		key, plaintext, err := e.CreateAPIKey(ctx, engine.APIKeyCreateOptions{
			ActorID: input.Body.ActorID,
			Name:    input.Body.Name,
			Actor:   actor,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body APIKeyCreatedResponse `json:"body"`
		}{Body: APIKeyCreatedResponse{
			ID:        key.ID,
			ActorID:   key.ActorID,
			Name:      key.Name,
			Key:       plaintext,
			CreatedAt: key.CreatedAt,
		}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-api-keys",
		Method:      http.MethodGet,
		Path:        "/keys",
		Summary:     "List API keys",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden},
	}, func(ctx context.Context, input *struct {
		ActorID string `query:"actor_id"`
	}) (*struct {
		Body struct {
			Items []APIKeyResponse `json:"items"`
		} `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		keys, err := e.ListAPIKeys(ctx, input.ActorID, actor)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Items []APIKeyResponse `json:"items"`
			} `json:"body"`
		}{}
		out.Body.Items = []APIKeyResponse{}
		for _, k := range keys {
			out.Body.Items = append(out.Body.Items, APIKeyResponse{
				ID: k.ID, ActorID: k.ActorID, Name: k.Name, CreatedAt: k.CreatedAt,
			})
		}
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-api-key",
		Method:      http.MethodDelete,
		Path:        "/keys/{id}",
		Summary:     "Revoke API key",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct{}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := e.DeleteAPIKey(ctx, input.ID, actor); err != nil {
			return nil, handleError(err)
		}
		return &struct{}{}, nil
	})
}

func registerShopConfig(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "get-shop-config",
		Method:      http.MethodGet,
		Path:        "/shop/config",
		Summary:     "Shop configuration",
		Errors:      []int{http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Shop string `query:"shop"`
	}) (*struct {
		Body struct {
			YAML string `json:"yaml"`
		} `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		cfg, err := e.ShopConfig(ctx, shopOrDefault(input.Shop, e), actor)
		if err != nil {
			return nil, handleError(err)
		}
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				YAML string `json:"yaml"`
			} `json:"body"`
		}{}
		out.Body.YAML = string(data)
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "import-shop-config",
		Method:      http.MethodPut,
		Path:        "/shop/config",
		Summary:     "Import shop configuration",
		Errors:      writeErrors,
	}, func(ctx context.Context, input *struct {
		Shop string `query:"shop"`
		Body struct {
			YAML string `json:"yaml"`
		} `json:"body"`
	}) (*struct {
		Body struct {
			Imported bool `json:"imported"`
		} `json:"body"`
	}, error) {
		actor, authErr := actorFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if strings.TrimSpace(input.Body.YAML) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "yaml is required", nil)
		}
		if _, err := e.ImportShopConfig(ctx, shopOrDefault(input.Shop, e), []byte(input.Body.YAML), actor); err != nil {
			return nil, handleError(err)
		}
		out := &struct {
			Body struct {
				Imported bool `json:"imported"`
			} `json:"body"`
		}{}
		out.Body.Imported = true
		return out, nil
	})
}

func registerMe(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current principal",
		Errors:      []int{http.StatusUnauthorized},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body WhoAmIResponse `json:"body"`
	}, error) {
		principal, ok := principalFromContext(ctx)
		if !ok {
			return nil, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
		}
		return &struct {
			Body WhoAmIResponse `json:"body"`
		}{Body: WhoAmIResponse{
			Actor:        principal.Actor,
			Source:       principal.Source,
			Capabilities: nonNilSlice(e.Perms.CapabilitiesOf(principal.Actor)),
		}}, nil
	})
}

func registerDevAuth(api huma.API, e engine.Engine, authCfg AuthConfig) {
	huma.Register(api, huma.Operation{
		OperationID: "dev-login",
		Method:      http.MethodPost,
		Path:        "/auth/dev/login",
		Summary:     "DEV ONLY: mint a JWT for local testing",
		Errors:      []int{http.StatusBadRequest, http.StatusInternalServerError},
	}, func(ctx context.Context, input *struct {
		Body DevLoginRequest `json:"body"`
	}) (*struct {
		Body DevLoginResponse `json:"body"`
	}, error) {
		actorID := strings.TrimSpace(input.Body.ActorID)
		if actorID == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "actor_id is required", nil)
		}
		token, err := signDevToken(authCfg.JWTSecret, actorID, 0)
		if err != nil {
			return nil, newAPIError(http.StatusInternalServerError, "internal_error", err.Error(), nil)
		}
		return &struct {
			Body DevLoginResponse `json:"body"`
		}{Body: DevLoginResponse{Token: token}}, nil
	})
}
