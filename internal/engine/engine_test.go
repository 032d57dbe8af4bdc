package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"essaybid/internal/config"
	"essaybid/internal/db"
	"essaybid/internal/domain"
	"essaybid/internal/engine"
	"essaybid/internal/migrate"
	"essaybid/internal/repo"
)

type testEnv struct {
	Engine     engine.Engine
	Ctx        context.Context
	Admin      domain.Actor
	Student    domain.Actor
	Supervisor domain.Actor
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	dir := t.TempDir()
	conn, err := db.Open(db.Config{Workspace: dir})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	cfg := config.Default()
	eng := engine.New(conn, cfg)
	// deterministic, strictly increasing clock so list order matches
	// insertion order
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	eng.Now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	ctx := context.Background()
	if err := eng.Repo.UpsertSettings(ctx, cfg); err != nil {
		t.Fatalf("seed settings: %v", err)
	}

	env := testEnv{Engine: eng, Ctx: ctx}
	bootstrap := domain.Actor{ID: "bootstrap", Role: domain.RoleAdmin}
	admin, err := eng.CreateUser(ctx, bootstrap, engine.UserCreateOptions{
		Email: "admin@example.com", Name: "Admin", Role: domain.RoleAdmin, Password: "admin-pass-1",
	})
	if err != nil {
		t.Fatalf("create admin: %v", err)
	}
	env.Admin = domain.Actor{ID: admin.ID, Role: domain.RoleAdmin}
	student, err := eng.Register(ctx, engine.UserCreateOptions{
		Email: "student@example.com", Name: "Student", Role: domain.RoleStudent, Password: "student-pass",
	})
	if err != nil {
		t.Fatalf("register student: %v", err)
	}
	env.Student = domain.Actor{ID: student.ID, Role: domain.RoleStudent}
	sup, err := eng.Register(ctx, engine.UserCreateOptions{
		Email: "supervisor@example.com", Name: "Supervisor", Role: domain.RoleSupervisor, Password: "super-pass-1",
	})
	if err != nil {
		t.Fatalf("register supervisor: %v", err)
	}
	env.Supervisor = domain.Actor{ID: sup.ID, Role: domain.RoleSupervisor}
	return env
}

func (env testEnv) createRequest(t *testing.T) domain.EssayRequest {
	t.Helper()
	req, err := env.Engine.CreateRequest(env.Ctx, env.Student, engine.RequestCreateOptions{
		Title:          "Essay on databases",
		DueDate:        "2024-03-01T00:00:00Z",
		WordCount:      2000,
		AssignmentType: "essay",
		FieldOfStudy:   "Computer Science",
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func TestCreateRequestValidation(t *testing.T) {
	env := newTestEnv(t)
	cases := []struct {
		name string
		opts engine.RequestCreateOptions
	}{
		{"missing title", engine.RequestCreateOptions{DueDate: "2024-03-01T00:00:00Z", WordCount: 100, AssignmentType: "essay", FieldOfStudy: "Law"}},
		{"bad due date", engine.RequestCreateOptions{Title: "x", DueDate: "tomorrow", WordCount: 100, AssignmentType: "essay", FieldOfStudy: "Law"}},
		{"zero words", engine.RequestCreateOptions{Title: "x", DueDate: "2024-03-01T00:00:00Z", AssignmentType: "essay", FieldOfStudy: "Law"}},
		{"unknown type", engine.RequestCreateOptions{Title: "x", DueDate: "2024-03-01T00:00:00Z", WordCount: 100, AssignmentType: "poem", FieldOfStudy: "Law"}},
		{"field not in catalog", engine.RequestCreateOptions{Title: "x", DueDate: "2024-03-01T00:00:00Z", WordCount: 100, AssignmentType: "essay", FieldOfStudy: "Alchemy"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.Engine.CreateRequest(env.Ctx, env.Student, tc.opts)
			var ve domain.ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}
}

func TestRolePolicy(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)

	// supervisors cannot open requests
	_, err := env.Engine.CreateRequest(env.Ctx, env.Supervisor, engine.RequestCreateOptions{
		Title: "x", DueDate: "2024-03-01T00:00:00Z", WordCount: 100, AssignmentType: "essay", FieldOfStudy: "Law",
	})
	var ae domain.AuthorizationError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	// students cannot bid
	_, err = env.Engine.CreateBid(env.Ctx, env.Student, engine.BidCreateOptions{RequestID: req.ID, Price: 50})
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	// supervisors cannot decide bids
	b, err := env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 50})
	if err != nil {
		t.Fatalf("create bid: %v", err)
	}
	_, err = env.Engine.SetBidStatus(env.Ctx, env.Supervisor, b.ID, domain.StatusAccepted)
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestBidAcceptFlow(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)

	// request broadcast reached the supervisor
	ns, err := env.Engine.ListNotifications(env.Ctx, env.Supervisor, false)
	if err != nil || len(ns) != 1 {
		t.Fatalf("supervisor notifications = %d, err %v", len(ns), err)
	}

	b, err := env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 120, Notes: "two weeks"})
	if err != nil {
		t.Fatalf("create bid: %v", err)
	}
	// one bid per supervisor per request
	_, err = env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 99})
	var ce domain.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	accepted, err := env.Engine.SetBidStatus(env.Ctx, env.Admin, b.ID, domain.StatusAccepted)
	if err != nil {
		t.Fatalf("accept bid: %v", err)
	}
	if accepted.Status != domain.StatusAccepted {
		t.Fatalf("bid status = %s", accepted.Status)
	}
	got, err := env.Engine.GetRequest(env.Ctx, env.Admin, req.ID)
	if err != nil {
		t.Fatalf("get request: %v", err)
	}
	if got.Status != domain.StatusAccepted {
		t.Fatalf("request status = %s, want accepted", got.Status)
	}
	if got.AssignedSupervisor == nil || *got.AssignedSupervisor != env.Supervisor.ID {
		t.Fatalf("assigned supervisor = %v", got.AssignedSupervisor)
	}
	// both sides were told
	n, err := env.Engine.UnreadCount(env.Ctx, env.Student)
	if err != nil || n == 0 {
		t.Fatalf("student unread = %d, err %v", n, err)
	}

	// terminal bid status
	_, err = env.Engine.SetBidStatus(env.Ctx, env.Admin, b.ID, domain.StatusRejected)
	var se domain.InvalidStateError
	if !errors.As(err, &se) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	// no bidding on a closed request
	_, err = env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 80})
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestAcceptRacesAreSerialized(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)
	sup2, err := env.Engine.Register(env.Ctx, engine.UserCreateOptions{
		Email: "second@example.com", Name: "Second", Role: domain.RoleSupervisor, Password: "second-pass",
	})
	if err != nil {
		t.Fatal(err)
	}
	b1, err := env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 100})
	if err != nil {
		t.Fatal(err)
	}
	b2, err := env.Engine.CreateBid(env.Ctx, domain.Actor{ID: sup2.ID, Role: domain.RoleSupervisor}, engine.BidCreateOptions{RequestID: req.ID, Price: 90})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetBidStatus(env.Ctx, env.Admin, b1.ID, domain.StatusAccepted); err != nil {
		t.Fatalf("accept first: %v", err)
	}
	// sibling stays pending but cannot be accepted once the request closed
	var ce domain.ConflictError
	_, err = env.Engine.SetBidStatus(env.Ctx, env.Admin, b2.ID, domain.StatusAccepted)
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	got, err := env.Engine.Repo.GetBid(env.Ctx, b2.ID)
	if err != nil || got.Status != domain.StatusPending {
		t.Fatalf("sibling bid = %+v, err %v", got, err)
	}
	// rejecting it is still fine
	if _, err := env.Engine.SetBidStatus(env.Ctx, env.Admin, b2.ID, domain.StatusRejected); err != nil {
		t.Fatalf("reject sibling: %v", err)
	}
}

func TestRebidAfterRejection(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)

	b, err := env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 140})
	if err != nil {
		t.Fatal(err)
	}
	// a pending bid blocks a second one
	var ce domain.ConflictError
	if _, err := env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 130}); !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if _, err := env.Engine.SetBidStatus(env.Ctx, env.Admin, b.ID, domain.StatusRejected); err != nil {
		t.Fatalf("reject: %v", err)
	}
	// a rejected one does not
	b2, err := env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 110})
	if err != nil {
		t.Fatalf("rebid after rejection: %v", err)
	}
	if b2.Status != domain.StatusPending {
		t.Fatalf("rebid status = %s", b2.Status)
	}
	if _, err := env.Engine.SetBidStatus(env.Ctx, env.Admin, b2.ID, domain.StatusAccepted); err != nil {
		t.Fatalf("accept rebid: %v", err)
	}
}

func TestAcceptRefusesSecondAcceptedBid(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)
	sup2, err := env.Engine.Register(env.Ctx, engine.UserCreateOptions{
		Email: "rival@example.com", Name: "Rival", Role: domain.RoleSupervisor, Password: "rival-pass-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	b1, err := env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 100})
	if err != nil {
		t.Fatal(err)
	}
	b2, err := env.Engine.CreateBid(env.Ctx, domain.Actor{ID: sup2.ID, Role: domain.RoleSupervisor}, engine.BidCreateOptions{RequestID: req.ID, Price: 90})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetBidStatus(env.Ctx, env.Admin, b1.ID, domain.StatusAccepted); err != nil {
		t.Fatal(err)
	}

	// even if the request somehow reopens, the accepted bid on it keeps a
	// second acceptance out
	got, err := env.Engine.Repo.GetRequest(env.Ctx, req.ID)
	if err != nil {
		t.Fatal(err)
	}
	got.Status = domain.StatusPending
	tx, err := env.Engine.DB.BeginTx(env.Ctx, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.Engine.Repo.UpdateRequest(env.Ctx, tx, got); err != nil {
		t.Fatal(err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}

	var ce domain.ConflictError
	if _, err := env.Engine.SetBidStatus(env.Ctx, env.Admin, b2.ID, domain.StatusAccepted); !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	sibling, err := env.Engine.Repo.GetBid(env.Ctx, b2.ID)
	if err != nil || sibling.Status != domain.StatusPending {
		t.Fatalf("sibling bid = %+v, err %v", sibling, err)
	}
}

func TestListCategories(t *testing.T) {
	env := newTestEnv(t)

	// two fields enter use in this order
	env.createRequest(t)
	if _, err := env.Engine.CreateRequest(env.Ctx, env.Student, engine.RequestCreateOptions{
		Title:          "Contract law essay",
		DueDate:        "2024-04-01T00:00:00Z",
		WordCount:      1200,
		AssignmentType: "essay",
		FieldOfStudy:   "Law",
	}); err != nil {
		t.Fatalf("create request: %v", err)
	}

	c, err := env.Engine.ListCategories(env.Ctx, env.Student)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	if len(c.AssignmentTypes) != len(domain.AssignmentTypes) {
		t.Fatalf("assignment types = %v", c.AssignmentTypes)
	}
	if len(c.QuestionCategories) == 0 {
		t.Fatalf("question categories = %v", c.QuestionCategories)
	}
	// catalog order, no duplicates from in-use fields
	want := env.Engine.Settings(env.Ctx).Catalog.FieldsOfStudy
	if len(c.FieldsOfStudy) != len(want) {
		t.Fatalf("fields = %v, want the catalog %v", c.FieldsOfStudy, want)
	}

	// shrink the catalog; fields already in use keep appearing after it,
	// ordered by first use
	cfg := env.Engine.Settings(env.Ctx)
	cfg.Catalog.FieldsOfStudy = []string{"Medicine"}
	if err := env.Engine.UpdateSettings(env.Ctx, env.Admin, cfg); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	c, err = env.Engine.ListCategories(env.Ctx, env.Student)
	if err != nil {
		t.Fatalf("list categories: %v", err)
	}
	got := c.FieldsOfStudy
	if len(got) != 3 || got[0] != "Medicine" || got[1] != "Computer Science" || got[2] != "Law" {
		t.Fatalf("fields after catalog edit = %v", got)
	}
}

func TestRequestVisibility(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)
	other, err := env.Engine.Register(env.Ctx, engine.UserCreateOptions{
		Email: "other@example.com", Name: "Other", Role: domain.RoleStudent, Password: "other-pass-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	otherStudent := domain.Actor{ID: other.ID, Role: domain.RoleStudent}

	// students see only their own
	items, err := env.Engine.ListRequests(env.Ctx, otherStudent, engine.RequestQuery{})
	if err != nil || len(items) != 0 {
		t.Fatalf("other student sees %d requests, err %v", len(items), err)
	}
	var ae domain.AuthorizationError
	if _, err := env.Engine.GetRequest(env.Ctx, otherStudent, req.ID); !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}

	// supervisors see pending requests
	items, err = env.Engine.ListRequests(env.Ctx, env.Supervisor, engine.RequestQuery{})
	if err != nil || len(items) != 1 {
		t.Fatalf("supervisor sees %d requests, err %v", len(items), err)
	}

	// once accepted elsewhere the request disappears for unrelated supervisors
	b, err := env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 100})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetBidStatus(env.Ctx, env.Admin, b.ID, domain.StatusAccepted); err != nil {
		t.Fatal(err)
	}
	sup2, err := env.Engine.Register(env.Ctx, engine.UserCreateOptions{
		Email: "sup2@example.com", Name: "Sup2", Role: domain.RoleSupervisor, Password: "sup2-pass-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	items, err = env.Engine.ListRequests(env.Ctx, domain.Actor{ID: sup2.ID, Role: domain.RoleSupervisor}, engine.RequestQuery{})
	if err != nil || len(items) != 0 {
		t.Fatalf("unrelated supervisor sees %d requests, err %v", len(items), err)
	}
	// while the assigned one still does
	items, err = env.Engine.ListRequests(env.Ctx, env.Supervisor, engine.RequestQuery{})
	if err != nil || len(items) != 1 {
		t.Fatalf("assigned supervisor sees %d requests, err %v", len(items), err)
	}
	items, err = env.Engine.ListRequests(env.Ctx, env.Supervisor, engine.RequestQuery{Assigned: true})
	if err != nil || len(items) != 1 {
		t.Fatalf("assigned filter returns %d requests, err %v", len(items), err)
	}
	items, err = env.Engine.ListRequests(env.Ctx, domain.Actor{ID: sup2.ID, Role: domain.RoleSupervisor}, engine.RequestQuery{Assigned: true})
	if err != nil || len(items) != 0 {
		t.Fatalf("assigned filter for unrelated supervisor returns %d, err %v", len(items), err)
	}

	// students never list bids
	if _, err := env.Engine.ListBids(env.Ctx, env.Student, engine.BidQuery{}); !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestChatModerationGate(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)

	// no chat before a supervisor is assigned
	_, err := env.Engine.SendMessage(env.Ctx, env.Student, req.ID, "hello?")
	var ce domain.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}

	b, err := env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 100})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetBidStatus(env.Ctx, env.Admin, b.ID, domain.StatusAccepted); err != nil {
		t.Fatal(err)
	}

	m, err := env.Engine.SendMessage(env.Ctx, env.Student, req.ID, "hello supervisor")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if m.Approved {
		t.Fatal("message approved despite moderation")
	}
	if m.ReceiverID != env.Supervisor.ID {
		t.Fatalf("receiver = %s, want supervisor", m.ReceiverID)
	}

	// held from the receiver, visible to the sender and to admins
	msgs, err := env.Engine.ListMessages(env.Ctx, env.Supervisor, engine.MessageQuery{RequestID: req.ID})
	if err != nil || len(msgs) != 0 {
		t.Fatalf("receiver sees %d held messages, err %v", len(msgs), err)
	}
	msgs, err = env.Engine.ListMessages(env.Ctx, env.Student, engine.MessageQuery{RequestID: req.ID})
	if err != nil || len(msgs) != 1 {
		t.Fatalf("sender sees %d messages, err %v", len(msgs), err)
	}
	msgs, err = env.Engine.ListMessages(env.Ctx, env.Admin, engine.MessageQuery{PendingOnly: true})
	if err != nil || len(msgs) != 1 {
		t.Fatalf("admin sees %d held messages, err %v", len(msgs), err)
	}

	approved, err := env.Engine.ApproveMessage(env.Ctx, env.Admin, m.ID)
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if !approved.Approved || approved.ApprovedBy == nil {
		t.Fatalf("approved = %+v", approved)
	}
	msgs, err = env.Engine.ListMessages(env.Ctx, env.Supervisor, engine.MessageQuery{RequestID: req.ID})
	if err != nil || len(msgs) != 1 {
		t.Fatalf("receiver sees %d messages after approval, err %v", len(msgs), err)
	}
	// approving twice is a state error
	var se domain.InvalidStateError
	if _, err := env.Engine.ApproveMessage(env.Ctx, env.Admin, m.ID); !errors.As(err, &se) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}

	// supervisor replies; receiver derived back to the student
	reply, err := env.Engine.SendMessage(env.Ctx, env.Supervisor, req.ID, "hello student")
	if err != nil {
		t.Fatal(err)
	}
	if reply.ReceiverID != env.Student.ID {
		t.Fatalf("reply receiver = %s, want student", reply.ReceiverID)
	}

	// outsiders cannot read the thread
	outsider, err := env.Engine.Register(env.Ctx, engine.UserCreateOptions{
		Email: "nosy@example.com", Name: "Nosy", Role: domain.RoleStudent, Password: "nosy-pass-1",
	})
	if err != nil {
		t.Fatal(err)
	}
	var ae domain.AuthorizationError
	_, err = env.Engine.ListMessages(env.Ctx, domain.Actor{ID: outsider.ID, Role: domain.RoleStudent}, engine.MessageQuery{RequestID: req.ID})
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestChatUnmoderatedAutoApproves(t *testing.T) {
	env := newTestEnv(t)
	cfg := env.Engine.Settings(env.Ctx)
	cfg.Chat.Moderated = false
	if err := env.Engine.UpdateSettings(env.Ctx, env.Admin, cfg); err != nil {
		t.Fatalf("update settings: %v", err)
	}
	req := env.createRequest(t)
	b, err := env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 100})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetBidStatus(env.Ctx, env.Admin, b.ID, domain.StatusAccepted); err != nil {
		t.Fatal(err)
	}
	m, err := env.Engine.SendMessage(env.Ctx, env.Student, req.ID, "direct line")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Approved {
		t.Fatal("message not auto-approved with moderation off")
	}
	msgs, err := env.Engine.ListMessages(env.Ctx, env.Supervisor, engine.MessageQuery{RequestID: req.ID})
	if err != nil || len(msgs) != 1 {
		t.Fatalf("receiver sees %d messages, err %v", len(msgs), err)
	}
}

func TestQuestionLifecycle(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.AskQuestion(env.Ctx, env.Student, engine.QuestionOptions{
		Title: "Refunds?", Body: "How do refunds work?", Category: "philosophy",
	})
	var ve domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for unknown category, got %v", err)
	}

	// the board belongs to students and supervisors; admins answer
	var ae2 domain.AuthorizationError
	_, err = env.Engine.AskQuestion(env.Ctx, env.Admin, engine.QuestionOptions{
		Title: "Why?", Body: "Asking myself.", Category: "general",
	})
	if !errors.As(err, &ae2) {
		t.Fatalf("expected AuthorizationError for admin ask, got %v", err)
	}

	q, err := env.Engine.AskQuestion(env.Ctx, env.Student, engine.QuestionOptions{
		Title: "Refunds?", Body: "How do refunds work?", Category: "billing",
	})
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	// questions are a shared board
	items, err := env.Engine.ListQuestions(env.Ctx, env.Supervisor, engine.QuestionQuery{})
	if err != nil || len(items) != 1 {
		t.Fatalf("supervisor sees %d questions, err %v", len(items), err)
	}

	// only admins answer
	var ae domain.AuthorizationError
	if _, err := env.Engine.AnswerQuestion(env.Ctx, env.Supervisor, q.ID, "like this"); !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	answered, err := env.Engine.AnswerQuestion(env.Ctx, env.Admin, q.ID, "within 14 days")
	if err != nil {
		t.Fatalf("answer: %v", err)
	}
	if answered.Status != domain.StatusAnswered || answered.Answer == nil {
		t.Fatalf("answered = %+v", answered)
	}
	var se domain.InvalidStateError
	if _, err := env.Engine.AnswerQuestion(env.Ctx, env.Admin, q.ID, "again"); !errors.As(err, &se) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	// the author was told
	ns, err := env.Engine.ListNotifications(env.Ctx, env.Student, true)
	if err != nil || len(ns) == 0 {
		t.Fatalf("student notifications = %d, err %v", len(ns), err)
	}
}

func TestAdminPrices(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)

	p, err := env.Engine.SetAdminPrice(env.Ctx, env.Admin, req.ID, 150)
	if err != nil {
		t.Fatalf("set price: %v", err)
	}
	// owner and admin see the quote
	items, err := env.Engine.ListPrices(env.Ctx, env.Student, req.ID)
	if err != nil || len(items) != 1 {
		t.Fatalf("student sees %d prices, err %v", len(items), err)
	}
	var ae domain.AuthorizationError
	if _, err := env.Engine.ListPrices(env.Ctx, env.Supervisor, req.ID); !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if err := env.Engine.DeleteAdminPrice(env.Ctx, env.Admin, p.ID); err != nil {
		t.Fatalf("delete price: %v", err)
	}
	var ne domain.NotFoundError
	if err := env.Engine.DeleteAdminPrice(env.Ctx, env.Admin, p.ID); !errors.As(err, &ne) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestNotificationOwnership(t *testing.T) {
	env := newTestEnv(t)
	env.createRequest(t)

	ns, err := env.Engine.ListNotifications(env.Ctx, env.Supervisor, true)
	if err != nil || len(ns) != 1 {
		t.Fatalf("supervisor notifications = %d, err %v", len(ns), err)
	}
	var ae domain.AuthorizationError
	if _, err := env.Engine.MarkNotificationRead(env.Ctx, env.Student, ns[0].ID); !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	read, err := env.Engine.MarkNotificationRead(env.Ctx, env.Supervisor, ns[0].ID)
	if err != nil || !read.Read {
		t.Fatalf("mark read: %+v, %v", read, err)
	}
	// idempotent
	if _, err := env.Engine.MarkNotificationRead(env.Ctx, env.Supervisor, ns[0].ID); err != nil {
		t.Fatalf("second mark read: %v", err)
	}
	n, err := env.Engine.UnreadCount(env.Ctx, env.Supervisor)
	if err != nil || n != 0 {
		t.Fatalf("unread = %d, err %v", n, err)
	}
}

func TestLoginSessions(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.Engine.Register(env.Ctx, engine.UserCreateOptions{
		Email: "student@example.com", Name: "Dup", Role: domain.RoleStudent, Password: "whatever-1",
	})
	var ce domain.ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError for duplicate email, got %v", err)
	}
	// admins cannot self-register
	var ae domain.AuthorizationError
	_, err = env.Engine.Register(env.Ctx, engine.UserCreateOptions{
		Email: "mallory@example.com", Name: "Mallory", Role: domain.RoleAdmin, Password: "mallory-pass",
	})
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}

	if _, _, err := env.Engine.Login(env.Ctx, "student@example.com", "wrong"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	u, token, err := env.Engine.Login(env.Ctx, "student@example.com", "student-pass")
	if err != nil || token == "" {
		t.Fatalf("login: %v", err)
	}
	got, err := env.Engine.Repo.GetSessionUser(env.Ctx, token)
	if err != nil || got.ID != u.ID {
		t.Fatalf("session user: %+v, %v", got, err)
	}

	// deactivation revokes sessions
	active := false
	if _, err := env.Engine.UpdateUser(env.Ctx, env.Admin, u.ID, engine.UserUpdateOptions{Active: &active}); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := env.Engine.Repo.GetSessionUser(env.Ctx, token); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after deactivation, got %v", err)
	}
	if _, _, err := env.Engine.Login(env.Ctx, "student@example.com", "student-pass"); !errors.Is(err, engine.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials for inactive account, got %v", err)
	}
}

func TestAssignSupervisorDirectly(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)

	_, err := env.Engine.AssignSupervisor(env.Ctx, env.Admin, req.ID, env.Student.ID)
	var ne domain.NotFoundError
	if !errors.As(err, &ne) {
		t.Fatalf("expected NotFoundError for non-supervisor, got %v", err)
	}
	got, err := env.Engine.AssignSupervisor(env.Ctx, env.Admin, req.ID, env.Supervisor.ID)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	// direct assignment never changes the request status
	if got.Status != domain.StatusPending {
		t.Fatalf("status = %s, want pending", got.Status)
	}
	if got.AssignedSupervisor == nil || *got.AssignedSupervisor != env.Supervisor.ID {
		t.Fatalf("assigned = %v", got.AssignedSupervisor)
	}
}

func TestEventsTrail(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)
	b, err := env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 100})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetBidStatus(env.Ctx, env.Admin, b.ID, domain.StatusAccepted); err != nil {
		t.Fatal(err)
	}
	events, err := env.Engine.ListEvents(env.Ctx, env.Admin, repo.EventFilters{Type: "request.accepted"})
	if err != nil || len(events) != 1 {
		t.Fatalf("request.accepted events = %d, err %v", len(events), err)
	}
	var ae domain.AuthorizationError
	if _, err := env.Engine.ListEvents(env.Ctx, env.Student, repo.EventFilters{}); !errors.As(err, &ae) {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
}

func TestStudentEditRules(t *testing.T) {
	env := newTestEnv(t)
	req := env.createRequest(t)

	title := "Essay on distributed databases"
	got, err := env.Engine.UpdateRequest(env.Ctx, env.Student, req.ID, engine.RequestUpdateOptions{Title: &title})
	if err != nil || got.Title != title {
		t.Fatalf("update: %+v, %v", got, err)
	}

	b, err := env.Engine.CreateBid(env.Ctx, env.Supervisor, engine.BidCreateOptions{RequestID: req.ID, Price: 100})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := env.Engine.SetBidStatus(env.Ctx, env.Admin, b.ID, domain.StatusAccepted); err != nil {
		t.Fatal(err)
	}
	// closed requests are frozen for students
	var se domain.InvalidStateError
	if _, err := env.Engine.UpdateRequest(env.Ctx, env.Student, req.ID, engine.RequestUpdateOptions{Title: &title}); !errors.As(err, &se) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	if err := env.Engine.DeleteRequest(env.Ctx, env.Student, req.ID); !errors.As(err, &se) {
		t.Fatalf("expected InvalidStateError, got %v", err)
	}
	// but not for admins
	if _, err := env.Engine.UpdateRequest(env.Ctx, env.Admin, req.ID, engine.RequestUpdateOptions{Title: &title}); err != nil {
		t.Fatalf("admin update: %v", err)
	}
	if err := env.Engine.DeleteRequest(env.Ctx, env.Admin, req.ID); err != nil {
		t.Fatalf("admin delete: %v", err)
	}
}
