package crud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/example/todo-crud/internal/logging"
)

// Logic orchestrates the CRUD verbs for one entity type.
//
// The validator table and read selector are assembled once while wiring and
// only read afterwards, so a Logic is safe for concurrent use.
type Logic[T Entity] struct {
	store       Store[T]
	validators  Validators[T]
	selectRead  ReadSelector[T]
	entityName  string
	logger      *slog.Logger
	ownerScoped bool
}

// Option customises a Logic at construction time.
type Option[T Entity] func(*Logic[T])

// WithEntityName sets the entity label used in logs and errors.
func WithEntityName[T Entity](name string) Option[T] {
	return func(l *Logic[T]) {
		if name != "" {
			l.entityName = name
		}
	}
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger[T Entity](logger *slog.Logger) Option[T] {
	return func(l *Logic[T]) {
		l.logger = logger
	}
}

// WithReadSelector replaces how GetByID and GetByOwnerID load entities.
func WithReadSelector[T Entity](selector ReadSelector[T]) Option[T] {
	return func(l *Logic[T]) {
		if selector != nil {
			l.selectRead = selector
		}
	}
}

// WithEntityRules swaps struct tag validation for fluent rules on Create and Update.
func WithEntityRules[T Entity](rules Rules[T]) Option[T] {
	return func(l *Logic[T]) {
		check := RuleEntityValidation(rules)
		l.validators[VerbCreate].Entity = check
		l.validators[VerbUpdate].Entity = check
	}
}

// WithValidator replaces the whole validator for verb.
func WithValidator[T Entity](verb Verb, v Validator[T]) Option[T] {
	return func(l *Logic[T]) {
		l.SetValidator(verb, v)
	}
}

// NewLogic builds a Logic over store with the default validator set.
func NewLogic[T Entity](store Store[T], opts ...Option[T]) *Logic[T] {
	l := &Logic[T]{
		store:      store,
		validators: DefaultValidators[T](),
		selectRead: SelectAll[T],
		entityName: entityTypeName[T](),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// DefaultValidators returns the parameter checks for every verb, struct tag
// entity validation on Create and Update, and no authority checks.
func DefaultValidators[T Entity]() Validators[T] {
	entity := StructEntityValidation[T]()

	var v Validators[T]
	v[VerbCreate] = Validator[T]{
		Parameter: All(RequesterPresent[T](), EntityPresent[T]()),
		Entity:    entity,
	}
	v[VerbGetByID] = Validator[T]{
		Parameter: All(RequesterPresent[T](), EntityIDsPresent[T]()),
	}
	v[VerbUpdate] = Validator[T]{
		Parameter: All(RequesterPresent[T](), EntityPresent[T](), EntityIDPresent[T]()),
		Entity:    entity,
	}
	v[VerbPartialUpdate] = Validator[T]{
		Parameter: All(RequesterPresent[T](), SingleEntityID[T](), PatchPresent[T]()),
	}
	v[VerbDelete] = Validator[T]{
		Parameter: All(RequesterPresent[T](), EntityIDsPresent[T]()),
	}
	v[VerbGetByOwnerID] = Validator[T]{
		Parameter: RequesterPresent[T](),
	}
	return v
}

// Validator returns the validator registered for verb.
func (l *Logic[T]) Validator(verb Verb) Validator[T] {
	if !verb.Valid() {
		return Validator[T]{}
	}
	return l.validators[verb]
}

// SetValidator replaces the validator for verb. Only call it while wiring.
func (l *Logic[T]) SetValidator(verb Verb, v Validator[T]) {
	if verb.Valid() {
		l.validators[verb] = v
	}
}

// EntityName returns the label used in logs.
func (l *Logic[T]) EntityName() string {
	return l.entityName
}

// OwnerScoped reports whether ownership checks and GetByOwnerID are enabled.
func (l *Logic[T]) OwnerScoped() bool {
	return l.ownerScoped
}

// Create inserts the entity and returns the id assigned by the store.
func (l *Logic[T]) Create(ctx context.Context, param CrudParam[T]) (result APIResult[int64], err error) {
	logger := l.log(ctx, VerbCreate)
	defer func() { l.report(ctx, logger, result.Successful, err, "id", result.Result) }()

	rejected, err := l.validate(ctx, VerbCreate, param)
	if err != nil || rejected != nil {
		return Rejected[int64](rejected), err
	}

	id, err := l.store.Insert(ctx, *param.Entity)
	if err != nil {
		return Rejected[int64](nil), l.storeError(VerbCreate, err)
	}
	return Succeeded(id), nil
}

// GetByID returns the entities whose id is in param.EntityIDs.
func (l *Logic[T]) GetByID(ctx context.Context, param CrudParam[T]) (result APIResult[[]T], err error) {
	logger := l.log(ctx, VerbGetByID, "requested", len(param.EntityIDs))
	defer func() { l.report(ctx, logger, result.Successful, err, "count", len(result.Result)) }()

	rejected, err := l.validate(ctx, VerbGetByID, param)
	if err != nil || rejected != nil {
		return Rejected[[]T](rejected), err
	}

	entities, err := l.selectRead(ctx, l.store, ByIDs(param.EntityIDs...))
	if err != nil {
		return Rejected[[]T](nil), l.storeError(VerbGetByID, err)
	}
	if entities == nil {
		entities = []T{}
	}
	return Succeeded(entities), nil
}

// Update overwrites the stored entity matching param.Entity's id.
func (l *Logic[T]) Update(ctx context.Context, param CrudParam[T]) (result APIResult[bool], err error) {
	logger := l.log(ctx, VerbUpdate)
	defer func() { l.report(ctx, logger, result.Successful, err, "affected", result.Result) }()

	return l.update(ctx, param)
}

// PartialUpdate runs its own parameter and authority checks, loads the entity
// addressed by the single id, applies the JSON Patch document, and sends the
// merged entity through Update's validation and persistence exactly once.
func (l *Logic[T]) PartialUpdate(ctx context.Context, param CrudParam[T]) (result APIResult[bool], err error) {
	logger := l.log(ctx, VerbPartialUpdate)
	defer func() { l.report(ctx, logger, result.Successful, err, "affected", result.Result) }()

	rejected, err := l.validate(ctx, VerbPartialUpdate, param)
	if err != nil || rejected != nil {
		return Rejected[bool](rejected), err
	}

	id := param.EntityIDs[0]
	current, err := l.store.FindByID(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Rejected[bool](Errors{{Field: "entityIds", Reason: fmt.Sprintf("entity %d not found", id)}}), nil
	}
	if err != nil {
		return Rejected[bool](nil), l.storeError(VerbPartialUpdate, err)
	}

	merged, patchErr := ApplyPatch(current, param.Patch)
	if patchErr != nil {
		return Rejected[bool](Errors{{Field: "patch", Reason: patchErr.Error()}}), nil
	}
	if merged.EntityID() != id {
		return Rejected[bool](Errors{{Field: "id", Reason: "id cannot be changed by a patch"}}), nil
	}

	return l.update(ctx, CrudParam[T]{Requester: param.Requester, Entity: &merged})
}

// Delete removes the entities whose id is in param.EntityIDs.
func (l *Logic[T]) Delete(ctx context.Context, param CrudParam[T]) (result APIResult[bool], err error) {
	logger := l.log(ctx, VerbDelete, "requested", len(param.EntityIDs))
	defer func() { l.report(ctx, logger, result.Successful, err, "affected", result.Result) }()

	rejected, err := l.validate(ctx, VerbDelete, param)
	if err != nil || rejected != nil {
		return Rejected[bool](rejected), err
	}

	deleted, err := l.store.Delete(ctx, ByIDs(distinctIDs(param.EntityIDs)...))
	if err != nil {
		return Rejected[bool](nil), l.storeError(VerbDelete, err)
	}
	return Succeeded(deleted), nil
}

// GetByOwnerID returns every entity owned by the requester. It is only
// available after EnableOwnership.
func (l *Logic[T]) GetByOwnerID(ctx context.Context, param CrudParam[T]) (result APIResult[[]T], err error) {
	logger := l.log(ctx, VerbGetByOwnerID)
	defer func() { l.report(ctx, logger, result.Successful, err, "count", len(result.Result)) }()

	if !l.ownerScoped {
		return Rejected[[]T](nil), fmt.Errorf("crud: %s %s: %w", l.entityName, VerbGetByOwnerID, ErrVerbNotConfigured)
	}

	rejected, err := l.validate(ctx, VerbGetByOwnerID, param)
	if err != nil || rejected != nil {
		return Rejected[[]T](rejected), err
	}

	ownerID, ok := RequesterID(param.Requester)
	if !ok {
		return Rejected[[]T](Errors{{Field: RequesterField, Reason: reasonRequesterNotInteger}}), nil
	}

	entities, err := l.selectRead(ctx, l.store, ByOwner(ownerID))
	if err != nil {
		return Rejected[[]T](nil), l.storeError(VerbGetByOwnerID, err)
	}
	if entities == nil {
		entities = []T{}
	}
	return Succeeded(entities), nil
}

func (l *Logic[T]) update(ctx context.Context, param CrudParam[T]) (APIResult[bool], error) {
	rejected, err := l.validate(ctx, VerbUpdate, param)
	if err != nil || rejected != nil {
		return Rejected[bool](rejected), err
	}

	updated, err := l.store.Update(ctx, *param.Entity)
	if err != nil {
		return Rejected[bool](nil), l.storeError(VerbUpdate, err)
	}
	return Succeeded(updated), nil
}

// validate runs the chain for verb. It returns the collected failures when the
// entity or authority stage rejects the request, and a *ParameterError when the
// parameter stage does.
func (l *Logic[T]) validate(ctx context.Context, verb Verb, param CrudParam[T]) (Errors, error) {
	stage, errs, err := l.validators[verb].run(ctx, param)
	if err != nil {
		return errs, fmt.Errorf("crud: %s %s: %w", l.entityName, verb, err)
	}
	switch stage {
	case StageNone:
		return nil, nil
	case StageParameter:
		return errs, &ParameterError{Verb: verb, Errors: errs}
	}
	return errs, nil
}

func (l *Logic[T]) storeError(verb Verb, err error) error {
	return fmt.Errorf("crud: %s %s: %w", l.entityName, verb, err)
}

func (l *Logic[T]) log(ctx context.Context, verb Verb, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = l.logger
	}
	if logger == nil {
		logger = slog.Default()
	}
	pairs := []any{"component", "crud", "entity", l.entityName, "verb", verb.String()}
	return logger.With(append(pairs, attrs...)...)
}

func (l *Logic[T]) report(ctx context.Context, logger *slog.Logger, successful bool, err error, attrs ...any) {
	switch {
	case err != nil:
		logger.ErrorContext(ctx, "crud request failed", "error", err, "error_kind", ErrorKind(err))
	case !successful:
		logger.WarnContext(ctx, "crud request rejected")
	default:
		logger.With(attrs...).InfoContext(ctx, "crud request completed")
	}
}

func entityTypeName[T any]() string {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Name() != "" {
		return t.Name()
	}
	return t.String()
}
