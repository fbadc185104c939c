// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package authz decides whether a verified principal may act on one specific
resource instance. It is the tenant isolation boundary: Business A never reads
Business B's programs, customers or cards.

Architecture:

  - Admin bypass: [RoleAdmin] is allowed by every guard before any
    relationship lookup runs.
  - Guards: one method per relationship rule. Each switches over the role
    side, so a new role cannot slip through a guard unnoticed.
  - Fail closed: a lookup error, timeout, cancellation or panic yields
    [OutcomeError], which callers treat as "not permitted".
  - Audit: every check emits exactly one [audit.Record]. Sink failures are
    logged and never change the decision.

The engine holds no mutable state and caches nothing; relationships are read
fresh on every check.
*/
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/taibuivan/rewards/internal/auth/audit"
)

// # Contracts

// CardOwnership names the two parties attached to a card.
type CardOwnership struct {
	CustomerID int64
	BusinessID int64
}

// RelationshipStore answers read-only relationship questions. Implementations
// must honor ctx deadlines.
type RelationshipStore interface {
	// HasActiveEnrollment reports an active enrollment of customerID in programID.
	HasActiveEnrollment(ctx context.Context, customerID, programID int64) (bool, error)

	// BusinessHasCustomer reports whether customerID is actively enrolled in
	// at least one program owned by businessID.
	BusinessHasCustomer(ctx context.Context, businessID, customerID int64) (bool, error)

	// ProgramOwner returns the owning business. found is false for unknown programs.
	ProgramOwner(ctx context.Context, programID int64) (businessID int64, found bool, err error)

	// CardOwnership returns the card parties. found is false for unknown cards.
	CardOwnership(ctx context.Context, cardID int64) (ownership CardOwnership, found bool, err error)
}

// # Decisions

// Outcome is the tri-state result of a check.
type Outcome int

const (
	OutcomeAllow Outcome = iota + 1
	OutcomeDeny
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAllow:
		return "allow"
	case OutcomeDeny:
		return "deny"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// HTTPStatus maps the outcome onto a response status.
func (o Outcome) HTTPStatus() int {
	switch o {
	case OutcomeAllow:
		return http.StatusOK
	case OutcomeDeny:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// Decision is returned by every guard. Allowed is true only for OutcomeAllow.
type Decision struct {
	Allowed bool
	Outcome Outcome
	Reason  string
}

func allow(reason string) Decision {
	return Decision{Allowed: true, Outcome: OutcomeAllow, Reason: reason}
}

func deny(reason string) Decision {
	return Decision{Outcome: OutcomeDeny, Reason: reason}
}

func failure(reason string) Decision {
	return Decision{Outcome: OutcomeError, Reason: reason}
}

// Audit actions and resource types.
const (
	ActionAccessBusiness   = "access_business"
	ActionAccessUser       = "access_user"
	ActionAccessEnrollment = "access_program_enrollment"
	ActionAccessCustomer   = "access_customer"
	ActionAccessProgram    = "access_program"
	ActionAccessCard       = "access_card"

	ResourceBusiness = "business"
	ResourceUser     = "user"
	ResourceProgram  = "program"
	ResourceCustomer = "customer"
	ResourceCard     = "card"
)

// # Engine

// DefaultLookupTimeout bounds one relationship lookup.
const DefaultLookupTimeout = 2 * time.Second

// Engine evaluates guards. It is safe for concurrent use.
type Engine struct {
	store   RelationshipStore
	sink    audit.Sink
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
	observe func(action string, outcome Outcome)
}

// Option configures an [Engine].
type Option func(*Engine)

// WithLookupTimeout overrides [DefaultLookupTimeout].
func WithLookupTimeout(timeout time.Duration) Option {
	return func(e *Engine) {
		if timeout > 0 {
			e.timeout = timeout
		}
	}
}

// WithClock overrides the audit timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLogger sets the logger used for sink failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithObserver registers a callback invoked after every decision (metrics).
func WithObserver(observe func(action string, outcome Outcome)) Option {
	return func(e *Engine) { e.observe = observe }
}

// NewEngine builds an engine. A nil sink disables auditing.
func NewEngine(store RelationshipStore, sink audit.Sink, opts ...Option) *Engine {
	engine := &Engine{
		store:   store,
		sink:    sink,
		timeout: DefaultLookupTimeout,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// # Guards

// Guard names one relationship rule, for route wiring.
type Guard int

const (
	GuardBusinessOwnership Guard = iota + 1
	GuardSelfOrAdmin
	GuardProgramEnrollment
	GuardBusinessCustomer
	GuardProgramAccess
	GuardCardAccess
)

// Check dispatches to the guard method for g.
func (engine *Engine) Check(ctx context.Context, g Guard, principal Principal, resourceID int64) Decision {
	switch g {
	case GuardBusinessOwnership:
		return engine.CheckBusinessOwnership(ctx, principal, resourceID)
	case GuardSelfOrAdmin:
		return engine.CheckSelfOrAdmin(ctx, principal, resourceID)
	case GuardProgramEnrollment:
		return engine.CheckProgramEnrollment(ctx, principal, resourceID)
	case GuardBusinessCustomer:
		return engine.CheckBusinessCustomerRelationship(ctx, principal, resourceID)
	case GuardProgramAccess:
		return engine.CheckProgramAccess(ctx, principal, resourceID)
	case GuardCardAccess:
		return engine.CheckCardAccess(ctx, principal, resourceID)
	default:
		return engine.check(ctx, principal, "unknown_guard", "unknown", resourceID, func(context.Context) (Decision, error) {
			return deny("unknown guard"), nil
		})
	}
}

// CheckBusinessOwnership allows a business account acting on its own business.
func (engine *Engine) CheckBusinessOwnership(ctx context.Context, principal Principal, businessID int64) Decision {
	return engine.check(ctx, principal, ActionAccessBusiness, ResourceBusiness, businessID, func(context.Context) (Decision, error) {
		switch principal.Role.side() {
		case sideBusiness:
			if principal.UserID == businessID {
				return allow("business owner"), nil
			}
			return deny("not the business owner"), nil
		case sideCustomer, sideTeam:
			return deny("not a business account"), nil
		case sideAdmin:
			return allow("admin"), nil
		default:
			return deny("unknown role"), nil
		}
	})
}

// CheckSelfOrAdmin allows a principal acting on its own user record.
func (engine *Engine) CheckSelfOrAdmin(ctx context.Context, principal Principal, userID int64) Decision {
	return engine.check(ctx, principal, ActionAccessUser, ResourceUser, userID, func(context.Context) (Decision, error) {
		switch principal.Role.side() {
		case sideBusiness, sideCustomer, sideTeam:
			if principal.UserID == userID {
				return allow("self"), nil
			}
			return deny("not self"), nil
		case sideAdmin:
			return allow("admin"), nil
		default:
			return deny("unknown role"), nil
		}
	})
}

// CheckProgramEnrollment allows a customer actively enrolled in programID.
func (engine *Engine) CheckProgramEnrollment(ctx context.Context, principal Principal, programID int64) Decision {
	return engine.check(ctx, principal, ActionAccessEnrollment, ResourceProgram, programID, func(lookupCtx context.Context) (Decision, error) {
		switch principal.Role.side() {
		case sideCustomer:
			enrolled, err := engine.store.HasActiveEnrollment(lookupCtx, principal.UserID, programID)
			if err != nil {
				return Decision{}, err
			}
			if enrolled {
				return allow("active enrollment"), nil
			}
			return deny("no active enrollment"), nil
		case sideBusiness, sideTeam:
			return deny("not a customer account"), nil
		case sideAdmin:
			return allow("admin"), nil
		default:
			return deny("unknown role"), nil
		}
	})
}

// CheckBusinessCustomerRelationship allows a business to read a customer
// actively enrolled in one of its programs.
func (engine *Engine) CheckBusinessCustomerRelationship(ctx context.Context, principal Principal, customerID int64) Decision {
	return engine.check(ctx, principal, ActionAccessCustomer, ResourceCustomer, customerID, func(lookupCtx context.Context) (Decision, error) {
		switch principal.Role.side() {
		case sideBusiness:
			related, err := engine.store.BusinessHasCustomer(lookupCtx, principal.UserID, customerID)
			if err != nil {
				return Decision{}, err
			}
			if related {
				return allow("customer enrolled in owned program"), nil
			}
			return deny("no relationship with customer"), nil
		case sideCustomer, sideTeam:
			return deny("not a business account"), nil
		case sideAdmin:
			return allow("admin"), nil
		default:
			return deny("unknown role"), nil
		}
	})
}

// CheckProgramAccess allows the owning business or an actively enrolled customer.
func (engine *Engine) CheckProgramAccess(ctx context.Context, principal Principal, programID int64) Decision {
	return engine.check(ctx, principal, ActionAccessProgram, ResourceProgram, programID, func(lookupCtx context.Context) (Decision, error) {
		switch principal.Role.side() {
		case sideBusiness:
			owner, found, err := engine.store.ProgramOwner(lookupCtx, programID)
			if err != nil {
				return Decision{}, err
			}
			if found && owner == principal.UserID {
				return allow("program owner"), nil
			}
			return deny("not the program owner"), nil
		case sideCustomer:
			enrolled, err := engine.store.HasActiveEnrollment(lookupCtx, principal.UserID, programID)
			if err != nil {
				return Decision{}, err
			}
			if enrolled {
				return allow("active enrollment"), nil
			}
			return deny("no active enrollment"), nil
		case sideTeam:
			return deny("team roles cannot access programs directly"), nil
		case sideAdmin:
			return allow("admin"), nil
		default:
			return deny("unknown role"), nil
		}
	})
}

// CheckCardAccess allows the card's customer or the card's business.
func (engine *Engine) CheckCardAccess(ctx context.Context, principal Principal, cardID int64) Decision {
	return engine.check(ctx, principal, ActionAccessCard, ResourceCard, cardID, func(lookupCtx context.Context) (Decision, error) {
		switch principal.Role.side() {
		case sideBusiness, sideCustomer, sideTeam:
			ownership, found, err := engine.store.CardOwnership(lookupCtx, cardID)
			if err != nil {
				return Decision{}, err
			}
			if !found {
				return deny("card not found"), nil
			}
			if ownership.CustomerID == principal.UserID {
				return allow("card holder"), nil
			}
			if ownership.BusinessID == principal.UserID {
				return allow("card issuer"), nil
			}
			return deny("not a card party"), nil
		case sideAdmin:
			return allow("admin"), nil
		default:
			return deny("unknown role"), nil
		}
	})
}

// # Evaluation

type predicate func(lookupCtx context.Context) (Decision, error)

// check runs the admin bypass, the predicate and the audit, in that order.
func (engine *Engine) check(ctx context.Context, principal Principal, action, resourceType string, resourceID int64, evaluate predicate) Decision {
	decision := engine.evaluate(ctx, principal, evaluate)

	engine.record(ctx, principal, action, resourceType, resourceID, decision)
	if engine.observe != nil {
		engine.observe(action, decision.Outcome)
	}
	return decision
}

func (engine *Engine) evaluate(ctx context.Context, principal Principal, evaluate predicate) (decision Decision) {
	defer func() {
		if recovered := recover(); recovered != nil {
			decision = failure(fmt.Sprintf("guard panic: %v", recovered))
		}
	}()

	// ── 1. Admin bypass ────────────────────────────────────────────────
	if principal.IsAdmin() {
		return allow("admin bypass")
	}

	// ── 2. Caller already gone ─────────────────────────────────────────
	if err := ctx.Err(); err != nil {
		return failure("request cancelled: " + err.Error())
	}

	// ── 3. Relationship predicate under the lookup deadline ────────────
	lookupCtx, cancel := context.WithTimeout(ctx, engine.timeout)
	defer cancel()

	decision, err := evaluate(lookupCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return failure("relationship lookup timed out")
		}
		return failure("relationship lookup failed: " + err.Error())
	}

	// An answer that arrived after the deadline is not trusted
	if decision.Allowed && lookupCtx.Err() != nil {
		return failure("relationship lookup timed out")
	}
	if decision.Outcome == 0 {
		return failure("guard returned no outcome")
	}
	return decision
}

// record emits exactly one audit record. It never fails the decision.
func (engine *Engine) record(ctx context.Context, principal Principal, action, resourceType string, resourceID int64, decision Decision) {
	if engine.sink == nil {
		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			engine.logger.Error("audit_sink_panic", slog.Any("panic", recovered), slog.String("action", action))
		}
	}()

	now := engine.now().UTC()
	meta := RequestMetaFrom(ctx)

	record := audit.Record{
		ID:           audit.NewID(now),
		PrincipalID:  principal.UserID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   strconv.FormatInt(resourceID, 10),
		Result:       resultOf(decision.Outcome),
		Timestamp:    now,
		IPAddress:    meta.IPAddress,
		UserAgent:    meta.UserAgent,
		Reason:       decision.Reason,
	}

	if err := engine.sink.Record(context.WithoutCancel(ctx), record); err != nil {
		engine.logger.Warn("audit_record_failed",
			slog.String("action", action),
			slog.String("audit_id", record.ID),
			slog.Any("error", err),
		)
	}
}

func resultOf(outcome Outcome) audit.Result {
	switch outcome {
	case OutcomeAllow:
		return audit.ResultSuccess
	case OutcomeDeny:
		return audit.ResultDenied
	default:
		return audit.ResultError
	}
}
