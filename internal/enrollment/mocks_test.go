package enrollment

import (
	"context"
	"sync"

	"github.com/learnhub/learnhub-payments/internal/domain"
)

// fakeCatalog implements domain.CourseCatalog with canned courses and an
// injectable increment failure budget.
type fakeCatalog struct {
	mu         sync.Mutex
	courses    map[string]*domain.Course
	increments map[string]int
	failTimes  int
	incErr     error
}

func newFakeCatalog(courses ...*domain.Course) *fakeCatalog {
	c := &fakeCatalog{
		courses:    make(map[string]*domain.Course),
		increments: make(map[string]int),
	}
	for _, course := range courses {
		c.courses[course.ID] = course
	}
	return c
}

func (c *fakeCatalog) GetCourse(ctx context.Context, courseID string) (*domain.Course, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	course, ok := c.courses[courseID]
	if !ok {
		return nil, domain.ErrCourseNotFound
	}
	cp := *course
	return &cp, nil
}

func (c *fakeCatalog) IncrementEnrolledCount(ctx context.Context, courseID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failTimes > 0 {
		c.failTimes--
		return c.incErr
	}
	if _, ok := c.courses[courseID]; !ok {
		return domain.ErrCourseNotFound
	}
	c.increments[courseID]++
	return nil
}

func (c *fakeCatalog) incrementsFor(courseID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.increments[courseID]
}

// fakeDirectory implements domain.StudentDirectory.
type fakeDirectory struct {
	students map[string]*domain.Student
}

func newFakeDirectory(students ...*domain.Student) *fakeDirectory {
	d := &fakeDirectory{students: make(map[string]*domain.Student)}
	for _, s := range students {
		d.students[s.ID] = s
	}
	return d
}

func (d *fakeDirectory) GetStudent(ctx context.Context, studentID string) (*domain.Student, error) {
	s, ok := d.students[studentID]
	if !ok {
		return nil, domain.ErrStudentNotFound
	}
	cp := *s
	return &cp, nil
}

// sessionCall records one InitSession invocation.
type sessionCall struct {
	payer         domain.PayerInfo
	amount        float64
	transactionID string
}

// fakeGateway implements domain.PaymentGateway.
type fakeGateway struct {
	mu          sync.Mutex
	redirectURL string
	initErr     error
	validateRes []byte
	validateErr error
	calls       []sessionCall
}

func (g *fakeGateway) InitSession(ctx context.Context, payer domain.PayerInfo, amount float64, transactionID string) (string, error) {
	g.mu.Lock()
	g.calls = append(g.calls, sessionCall{payer: payer, amount: amount, transactionID: transactionID})
	g.mu.Unlock()
	if g.initErr != nil {
		return "", g.initErr
	}
	return g.redirectURL, nil
}

func (g *fakeGateway) Validate(ctx context.Context, validationID string) ([]byte, error) {
	if g.validateErr != nil {
		return nil, g.validateErr
	}
	return g.validateRes, nil
}

func (g *fakeGateway) lastCall() sessionCall {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[len(g.calls)-1]
}
