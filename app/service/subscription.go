package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/access"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/entity"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/events"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/factory"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/gateway"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/lifecycle"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/lock"
	"github.com/vibast-solutions/ms-go-api-subscriptions/app/metrics"
	"github.com/vibast-solutions/ms-go-api-subscriptions/config"
)

// SubscriptionPayload is the caller-supplied part of a subscription.
// Keys and timestamps are never taken from it.
type SubscriptionPayload struct {
	ID             string
	Name           string
	ProductName    string
	DeploymentName string
	OwnerID        string
	Status         string
}

type UpsertResult struct {
	Subscription *entity.APISubscription
	Created      bool
}

type subscriptionRepository interface {
	Create(ctx context.Context, subscription *entity.APISubscription) error
	Update(ctx context.Context, subscription *entity.APISubscription) error
	FindByID(ctx context.Context, id string) (*entity.APISubscription, error)
	CountByID(ctx context.Context, id string, statuses []lifecycle.Status) (int, error)
	List(ctx context.Context, ownerID string, statuses []lifecycle.Status) ([]*entity.APISubscription, error)
}

type reconciliationRepository interface {
	Create(ctx context.Context, marker *entity.ReconciliationMarker) error
	Delete(ctx context.Context, id string) error
	MarkReported(ctx context.Context, id string, at time.Time) error
}

type subscriptionGateway interface {
	Create(ctx context.Context, subscription *entity.APISubscription) (*gateway.Properties, error)
	Update(ctx context.Context, subscription *entity.APISubscription) (*gateway.Properties, error)
	Delete(ctx context.Context, subscription *entity.APISubscription) error
	RotateKey(ctx context.Context, id string, keyName gateway.KeyName) (*gateway.Properties, error)
}

type divergenceNotifier interface {
	NotifyDivergence(ctx context.Context, event events.DivergenceEvent) error
}

type APISubscriptionService struct {
	subscriptionRepo   subscriptionRepository
	reconciliationRepo reconciliationRepository
	gateway            subscriptionGateway
	locker             lock.Locker
	notifier           divergenceNotifier
	cfg                config.SyncConfig
	logger             logrus.FieldLogger
	now                func() time.Time
}

func NewAPISubscriptionService(
	subscriptionRepo subscriptionRepository,
	reconciliationRepo reconciliationRepository,
	gateway subscriptionGateway,
	locker lock.Locker,
	notifier divergenceNotifier,
	cfg config.SyncConfig,
) *APISubscriptionService {
	if cfg.OperationTimeout <= 0 {
		cfg.OperationTimeout = time.Minute
	}
	return &APISubscriptionService{
		subscriptionRepo:   subscriptionRepo,
		reconciliationRepo: reconciliationRepo,
		gateway:            gateway,
		locker:             locker,
		notifier:           notifier,
		cfg:                cfg,
		logger:             factory.NewModuleLogger("api-subscription-service"),
		now:                func() time.Time { return time.Now().UTC() },
	}
}

func (s *APISubscriptionService) ListActive(ctx context.Context, caller access.Caller, ownerID string, statuses []lifecycle.Status) ([]*entity.APISubscription, error) {
	owner, err := access.ScopeOwner(caller, ownerID)
	if err != nil {
		return nil, err
	}
	if len(statuses) == 0 {
		statuses = lifecycle.DefaultActiveFilter()
	}
	return s.subscriptionRepo.List(ctx, owner, statuses)
}

func (s *APISubscriptionService) ListDeleted(ctx context.Context, caller access.Caller, ownerID string) ([]*entity.APISubscription, error) {
	if err := access.VerifyAccess(caller, true, nil); err != nil {
		return nil, err
	}
	return s.subscriptionRepo.List(ctx, strings.TrimSpace(ownerID), lifecycle.DefaultDeletedFilter())
}

func (s *APISubscriptionService) Get(ctx context.Context, caller access.Caller, id string) (*entity.APISubscription, error) {
	subscription, err := s.findActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if subscription == nil {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id)
	}
	if err := access.VerifyAccess(caller, false, &subscription.OwnerID); err != nil {
		return nil, err
	}
	return subscription, nil
}

// Exists reports whether an active record holds id.
func (s *APISubscriptionService) Exists(ctx context.Context, id string) (bool, error) {
	count, err := s.subscriptionRepo.CountByID(ctx, id, lifecycle.DefaultActiveFilter())
	if err != nil {
		return false, err
	}
	if count > 1 {
		s.logger.WithFields(logrus.Fields{"subscription_id": id, "count": count}).Error("Duplicate api subscription records")
		return false, fmt.Errorf("%w: %d records share id %s", ErrIntegrityViolation, count, id)
	}
	return count == 1, nil
}

func (s *APISubscriptionService) CreateOrUpdate(ctx context.Context, caller access.Caller, id string, payload *SubscriptionPayload) (*UpsertResult, error) {
	id = strings.TrimSpace(id)
	if payload == nil {
		return nil, fmt.Errorf("%w: subscription payload is required", ErrInvalidRequest)
	}
	if id == "" || !strings.EqualFold(strings.TrimSpace(payload.ID), id) {
		return nil, fmt.Errorf("%w: subscription id in body must match the path", ErrInvalidRequest)
	}

	var status lifecycle.Status
	if raw := strings.TrimSpace(payload.Status); raw != "" {
		parsed, ok := lifecycle.Parse(raw)
		if !ok || !lifecycle.IsActive(parsed) {
			return nil, fmt.Errorf("%w: status %q can not be set directly", ErrInvalidRequest, raw)
		}
		status = parsed
	}

	release, err := s.locker.Acquire(ctx, lock.SubscriptionKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	exists, err := s.Exists(ctx, id)
	if err != nil {
		return nil, err
	}

	if exists {
		existing, err := s.subscriptionRepo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if existing == nil {
			return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id)
		}
		updated, err := s.update(ctx, caller, existing, payload, status)
		if err != nil {
			return nil, err
		}
		return &UpsertResult{Subscription: updated}, nil
	}

	created, err := s.create(ctx, caller, id, payload, status)
	if err != nil {
		return nil, err
	}
	return &UpsertResult{Subscription: created, Created: true}, nil
}

func (s *APISubscriptionService) create(ctx context.Context, caller access.Caller, id string, payload *SubscriptionPayload, status lifecycle.Status) (*entity.APISubscription, error) {
	previous, err := s.subscriptionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if previous != nil {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionDeleted, id)
	}

	productName := strings.TrimSpace(payload.ProductName)
	deploymentName := strings.TrimSpace(payload.DeploymentName)
	ownerID := strings.TrimSpace(payload.OwnerID)
	if productName == "" || deploymentName == "" || ownerID == "" {
		return nil, fmt.Errorf("%w: product_name, deployment_name and owner_id are required", ErrInvalidRequest)
	}
	if err := access.VerifyAccess(caller, false, &ownerID); err != nil {
		return nil, err
	}
	if status == "" {
		status = lifecycle.StatusPendingFulfillmentStart
	}

	subscription := &entity.APISubscription{
		ID:             id,
		Name:           strings.TrimSpace(payload.Name),
		ProductName:    productName,
		DeploymentName: deploymentName,
		OwnerID:        ownerID,
		Status:         status,
	}

	var props *gateway.Properties
	err = s.synchronize(ctx, caller, subscription.ID, entity.OperationCreate,
		fmt.Sprintf("create %s/%s for %s", productName, deploymentName, ownerID),
		func(ctx context.Context) error {
			var err error
			props, err = s.gateway.Create(ctx, subscription)
			return err
		},
		func(ctx context.Context) error {
			applyProperties(subscription, props)
			now := s.now()
			subscription.CreatedAt = now
			subscription.UpdatedAt = now
			return s.subscriptionRepo.Create(ctx, subscription)
		},
	)
	if err != nil {
		return nil, err
	}
	return subscription, nil
}

func (s *APISubscriptionService) update(ctx context.Context, caller access.Caller, existing *entity.APISubscription, payload *SubscriptionPayload, status lifecycle.Status) (*entity.APISubscription, error) {
	if err := access.VerifyAccess(caller, false, &existing.OwnerID); err != nil {
		return nil, err
	}
	if !strings.EqualFold(strings.TrimSpace(payload.ProductName), existing.ProductName) {
		return nil, fmt.Errorf("%w: product_name of subscription %s can not be changed", ErrImmutableField, existing.ID)
	}
	if owner := strings.TrimSpace(payload.OwnerID); owner != "" && !strings.EqualFold(owner, existing.OwnerID) {
		return nil, fmt.Errorf("%w: owner_id of subscription %s can not be changed", ErrImmutableField, existing.ID)
	}
	deploymentName := strings.TrimSpace(payload.DeploymentName)
	if deploymentName == "" {
		return nil, fmt.Errorf("%w: deployment_name is required", ErrInvalidRequest)
	}
	if strings.EqualFold(deploymentName, existing.DeploymentName) {
		return nil, fmt.Errorf("%w: %s", ErrSamePlan, deploymentName)
	}

	updated := existing.Clone()
	updated.DeploymentName = deploymentName
	if name := strings.TrimSpace(payload.Name); name != "" {
		updated.Name = name
	}
	if status != "" {
		updated.Status = status
	}

	var props *gateway.Properties
	err := s.synchronize(ctx, caller, updated.ID, entity.OperationUpdate,
		fmt.Sprintf("plan %s -> %s", existing.DeploymentName, deploymentName),
		func(ctx context.Context) error {
			var err error
			props, err = s.gateway.Update(ctx, updated)
			return err
		},
		func(ctx context.Context) error {
			applyProperties(updated, props)
			updated.UpdatedAt = s.now()
			return s.subscriptionRepo.Update(ctx, updated)
		},
	)
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *APISubscriptionService) Delete(ctx context.Context, caller access.Caller, id string) (*entity.APISubscription, error) {
	id = strings.TrimSpace(id)
	release, err := s.locker.Acquire(ctx, lock.SubscriptionKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.findActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("%w: %s", ErrSubscriptionNotFound, id)
	}
	if err := access.VerifyAccess(caller, false, &existing.OwnerID); err != nil {
		return nil, err
	}

	deleted := existing.Clone()
	err = s.synchronize(ctx, caller, id, entity.OperationDelete,
		fmt.Sprintf("delete from status %s", existing.Status),
		func(ctx context.Context) error {
			return s.gateway.Delete(ctx, existing)
		},
		func(ctx context.Context) error {
			deleted.Status = lifecycle.StatusUnsubscribed
			deleted.UpdatedAt = s.now()
			return s.subscriptionRepo.Update(ctx, deleted)
		},
	)
	if err != nil {
		return nil, err
	}
	return deleted, nil
}

// RegenerateKey is admin-only. Non-admins get the same answer as for an
// unknown id so the call does not reveal which ids exist.
func (s *APISubscriptionService) RegenerateKey(ctx context.Context, caller access.Caller, id, keyName string) (*entity.APISubscription, error) {
	id = strings.TrimSpace(id)
	key, err := gateway.ParseKeyName(keyName)
	if err != nil {
		return nil, err
	}
	notFound := fmt.Errorf("%w: api subscription %s doesn't exist or you don't have permission", ErrSubscriptionNotFound, id)
	if access.VerifyAccess(caller, true, nil) != nil {
		return nil, notFound
	}

	release, err := s.locker.Acquire(ctx, lock.SubscriptionKey(id))
	if err != nil {
		return nil, err
	}
	defer release()

	existing, err := s.findActive(ctx, id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, notFound
	}

	rotated := existing.Clone()
	var props *gateway.Properties
	err = s.synchronize(ctx, caller, id, entity.OperationRegenerateKey, "rotate "+string(key),
		func(ctx context.Context) error {
			var err error
			props, err = s.gateway.RotateKey(ctx, id, key)
			return err
		},
		func(ctx context.Context) error {
			applyProperties(rotated, props)
			rotated.UpdatedAt = s.now()
			return s.subscriptionRepo.Update(ctx, rotated)
		},
	)
	if err != nil {
		return nil, err
	}
	return rotated, nil
}

func (s *APISubscriptionService) findActive(ctx context.Context, id string) (*entity.APISubscription, error) {
	subscription, err := s.subscriptionRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if subscription == nil || !lifecycle.IsActive(subscription.Status) {
		return nil, nil
	}
	return subscription, nil
}

// synchronize runs remote then local under a reconciliation marker. Once the
// remote step starts the caller can no longer cancel the pair.
func (s *APISubscriptionService) synchronize(
	ctx context.Context,
	caller access.Caller,
	subscriptionID, operation, detail string,
	remote func(ctx context.Context) error,
	local func(ctx context.Context) error,
) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.OperationTimeout)
	defer cancel()

	logger := factory.LoggerForSubscription(s.logger, subscriptionID, caller.ID).WithField("operation", operation)

	marker := &entity.ReconciliationMarker{
		ID:             uuid.NewString(),
		SubscriptionID: subscriptionID,
		Operation:      operation,
		Detail:         detail,
		CreatedAt:      s.now(),
	}
	if err := s.reconciliationRepo.Create(opCtx, marker); err != nil {
		return fmt.Errorf("record pending %s: %w", operation, err)
	}

	if err := remote(opCtx); err != nil {
		logger.WithError(err).Warn("Gateway operation failed")
		metrics.ObserveSync(operation, metrics.OutcomeRemoteFailed)
		s.clearMarker(opCtx, logger, marker)
		return err
	}

	if err := local(opCtx); err != nil {
		metrics.ObserveSync(operation, metrics.OutcomeDiverged)
		s.reportDivergence(opCtx, logger, marker, err)
		return fmt.Errorf("%w: %s of %s: %v", ErrDivergence, operation, subscriptionID, err)
	}

	s.clearMarker(opCtx, logger, marker)
	metrics.ObserveSync(operation, metrics.OutcomeSynchronized)
	logger.Info("API subscription synchronized")
	return nil
}

func (s *APISubscriptionService) clearMarker(ctx context.Context, logger logrus.FieldLogger, marker *entity.ReconciliationMarker) {
	if err := s.reconciliationRepo.Delete(ctx, marker.ID); err != nil {
		logger.WithError(err).WithField("marker_id", marker.ID).Warn("Failed to clear reconciliation marker")
	}
}

func (s *APISubscriptionService) reportDivergence(ctx context.Context, logger logrus.FieldLogger, marker *entity.ReconciliationMarker, cause error) {
	logger.WithError(cause).WithFields(logrus.Fields{
		"divergence": true,
		"marker_id":  marker.ID,
	}).Error("Gateway updated but local write failed")

	event := events.DivergenceEvent{
		SubscriptionID: marker.SubscriptionID,
		Operation:      marker.Operation,
		Detail:         marker.Detail + ": " + cause.Error(),
		OccurredAt:     s.now(),
	}
	if err := s.notifier.NotifyDivergence(ctx, event); err != nil {
		logger.WithError(err).Error("Failed to publish divergence")
		return
	}
	metrics.ObserveDivergenceReported("service")
	if err := s.reconciliationRepo.MarkReported(ctx, marker.ID, event.OccurredAt); err != nil {
		logger.WithError(err).Warn("Failed to mark divergence as reported")
	}
}

func applyProperties(subscription *entity.APISubscription, props *gateway.Properties) {
	if props == nil {
		return
	}
	subscription.PrimaryKey = props.PrimaryKey
	subscription.SecondaryKey = props.SecondaryKey
	if props.ETag != "" {
		subscription.GatewayETag = props.ETag
	}
}
