package services_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/invictusops/invictus/app/models"
	"github.com/invictusops/invictus/app/services"
	"github.com/invictusops/invictus/internal/views"
	"github.com/invictusops/invictus/pkg/auth"
	"github.com/invictusops/invictus/pkg/cache"
	"github.com/invictusops/invictus/pkg/docstore"
	"github.com/invictusops/invictus/pkg/notification"
	"github.com/invictusops/invictus/pkg/session"
)

var fixedNow = time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store   docstore.Store
	engine  *views.Engine
	users   *services.UserService
	mail    *services.NotificationService
	auth    *services.AuthService
	inv     *services.InventoryService
	tasks   *services.TaskService
	reqs    *services.OrderRequestService
	daily   *services.DailyOrderService
	custs   *services.CustomerService
	session *session.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := docstore.NewMemory()
	t.Cleanup(func() { _ = store.Close(context.Background()) })

	now := func() time.Time { return fixedNow }
	engine := views.NewEngine(now, time.UTC)
	users := services.NewUserService(store, auth.Bcrypt{Cost: bcrypt.MinCost})
	mail := services.NewNotificationService(store)

	return &fixture{
		store:   store,
		engine:  engine,
		users:   users,
		mail:    mail,
		auth:    services.NewAuthService(users, mail, engine),
		inv:     services.NewInventoryService(store, now),
		tasks:   services.NewTaskService(store, users, notification.NewDispatcher(mail, ""), now),
		reqs:    services.NewOrderRequestService(store, now),
		daily:   services.NewDailyOrderService(store, engine),
		custs:   services.NewCustomerService(store, now),
		session: session.NewManager(cache.NewMemory(), session.DefaultOptions()),
	}
}

func (f *fixture) user(t *testing.T, name string) models.User {
	t.Helper()
	u, err := f.users.Create(context.Background(), name, "Staff", "password123")
	require.NoError(t, err)
	return u
}
