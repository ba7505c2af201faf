// internal/app/system/selection/selection.go
// Package selection owns which school and which academic year are in effect.
// A Context is the single writer of that state; everything else reads
// snapshots of it or subscribes to changes.
package selection

import (
	"context"
	"sync"

	"github.com/dalemusser/campusdesk/internal/app/system/backend"
	"github.com/dalemusser/campusdesk/internal/domain/models"
	"go.uber.org/zap"
)

// Status is the state of one half of the selection.
type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusLoading       Status = "loading"
	StatusResolved      Status = "resolved"
	StatusUnresolved    Status = "unresolved"
)

// Snapshot is an immutable copy of the selection at one moment.
type Snapshot struct {
	SchoolStatus Status
	YearStatus   Status

	School *models.School
	Year   *models.AcademicYear

	// Schools and Years are what the last load saw.
	Schools []models.School
	Years   []models.AcademicYear

	// Err is the directory failure that left the selection unresolved.
	Err error
}

// SchoolID returns the selected school id, or "".
func (s Snapshot) SchoolID() string {
	if s.School == nil {
		return ""
	}
	return s.School.ID
}

// YearID returns the selected year id, or "".
func (s Snapshot) YearID() string {
	if s.Year == nil {
		return ""
	}
	return s.Year.ID
}

// Resolved reports whether both school and year are known.
func (s Snapshot) Resolved() bool {
	return s.SchoolStatus == StatusResolved && s.YearStatus == StatusResolved
}

// IsReadOnly reports whether mutations are refused. An unresolved selection
// is read-only.
func (s Snapshot) IsReadOnly() bool {
	if !s.Resolved() || s.Year == nil {
		return true
	}
	return s.Year.ReadOnly()
}

// RequireWritable returns a context error when the selection cannot accept
// mutations.
func (s Snapshot) RequireWritable() error {
	switch {
	case s.SchoolStatus != StatusResolved || s.School == nil:
		return backend.ContextError("no school is selected; records are read-only")
	case s.YearStatus != StatusResolved || s.Year == nil:
		return backend.ContextError("no academic year is selected; records are read-only")
	case s.Year.IsArchived:
		return backend.ContextError("academic year %q is archived and read-only", s.Year.Name)
	case !s.Year.IsCurrent:
		return backend.ContextError("academic year %q is not the current year and is read-only", s.Year.Name)
	}
	return nil
}

// Context holds the live selection.
type Context struct {
	dir   Directory
	store Persister
	log   *zap.Logger

	// writeMu serializes transitions (each may span directory calls);
	// mu guards snap and subs for readers.
	writeMu sync.Mutex
	mu      sync.RWMutex
	snap    Snapshot
	subs    map[int]func(Snapshot)
	nextSub int
}

// New returns an uninitialized Context. Call Load before use.
func New(dir Directory, store Persister, logger *zap.Logger) *Context {
	if logger == nil {
		logger = zap.NewNop()
	}
	if store == nil {
		store = NewMemoryPersister(nil)
	}
	return &Context{
		dir:   dir,
		store: store,
		log:   logger,
		snap: Snapshot{
			SchoolStatus: StatusUninitialized,
			YearStatus:   StatusUninitialized,
		},
		subs: map[int]func(Snapshot){},
	}
}

// Snapshot returns the current selection.
func (c *Context) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// SchoolID and YearID let a Context stand in wherever a scope is expected.
func (c *Context) SchoolID() string { return c.Snapshot().SchoolID() }
func (c *Context) YearID() string   { return c.Snapshot().YearID() }

// IsReadOnly reports whether the current selection refuses mutations.
func (c *Context) IsReadOnly() bool { return c.Snapshot().IsReadOnly() }

// RequireWritable is Snapshot().RequireWritable().
func (c *Context) RequireWritable() error { return c.Snapshot().RequireWritable() }

// Subscribe registers fn to receive every new snapshot. The returned func
// removes it. fn runs on the goroutine that made the change and must not
// call back into a writer method.
func (c *Context) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

// Load resolves school and year from the directory and the persisted keys.
// A directory failure leaves the selection unresolved with Err set; it is
// returned as well and is not retried.
func (c *Context) Load(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.set(Snapshot{SchoolStatus: StatusLoading, YearStatus: StatusUninitialized})

	schools, err := c.dir.ActiveSchools(ctx)
	if err != nil {
		c.log.Warn("loading schools failed", zap.Error(err))
		c.set(Snapshot{SchoolStatus: StatusUnresolved, YearStatus: StatusUnresolved, Err: err})
		return err
	}
	school, ok := ResolveSchool(schools, c.store.Get(KeySchoolCode))
	if !ok {
		c.set(Snapshot{SchoolStatus: StatusUnresolved, YearStatus: StatusUnresolved, Schools: schools})
		return nil
	}
	return c.loadYears(ctx, schools, school, c.store.Get(KeyYearID))
}

// SelectSchool switches to the active school with the given code. The
// previous year selection is discarded and the year re-resolved for the new
// school, even if an old year id happens to match one of its years.
func (c *Context) SelectSchool(ctx context.Context, code string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	schools := c.Snapshot().Schools
	var (
		school models.School
		found  bool
	)
	for _, s := range schools {
		if s.Code == code && s.IsActive {
			school, found = s, true
			break
		}
	}
	if !found {
		return backend.ContextError("school %q is not available", code)
	}
	return c.loadYears(ctx, schools, school, "")
}

// SelectYear switches to a year of the selected school and persists it.
func (c *Context) SelectYear(yearID string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	snap := c.Snapshot()
	if snap.SchoolStatus != StatusResolved {
		return backend.ContextError("select a school before selecting an academic year")
	}
	for _, y := range snap.Years {
		if y.ID != yearID {
			continue
		}
		if err := c.store.Set(KeyYearID, y.ID); err != nil {
			return err
		}
		y := y
		snap.Year = &y
		snap.YearStatus = StatusResolved
		snap.Err = nil
		c.set(snap)
		return nil
	}
	return backend.ContextError("academic year %q does not belong to school %q", yearID, snap.School.Code)
}

// loadYears resolves the year for school and publishes the result. Caller
// holds writeMu.
func (c *Context) loadYears(ctx context.Context, schools []models.School, school models.School, persistedYear string) error {
	c.set(Snapshot{
		SchoolStatus: StatusResolved,
		YearStatus:   StatusLoading,
		School:       &school,
		Schools:      schools,
	})
	if err := c.store.Set(KeySchoolCode, school.Code); err != nil {
		return err
	}

	years, err := c.dir.Years(ctx, school.ID)
	if err != nil {
		c.log.Warn("loading academic years failed", zap.String("school", school.Code), zap.Error(err))
		c.set(Snapshot{
			SchoolStatus: StatusResolved,
			YearStatus:   StatusUnresolved,
			School:       &school,
			Schools:      schools,
			Err:          err,
		})
		return err
	}

	next := Snapshot{
		SchoolStatus: StatusResolved,
		YearStatus:   StatusUnresolved,
		School:       &school,
		Schools:      schools,
		Years:        years,
	}
	yearID := ""
	if year, ok := ResolveYear(years, persistedYear); ok {
		next.Year = &year
		next.YearStatus = StatusResolved
		yearID = year.ID
	}
	if err := c.store.Set(KeyYearID, yearID); err != nil {
		return err
	}
	c.set(next)
	return nil
}

// set publishes s and notifies subscribers outside the lock.
func (c *Context) set(s Snapshot) {
	c.mu.Lock()
	c.snap = s
	fns := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}
