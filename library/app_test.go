package library

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(api *fakeAPI) (*App, *Session) {
	session := NewSession()
	app := NewApp(api, session, AppOptions{
		RegisterRedirect: 10 * time.Millisecond,
		Logger:           quietLog,
	})
	return app, session
}

func TestAppStartsOnLogin(t *testing.T) {
	app, _ := newTestApp(newFakeAPI())
	assert.Equal(t, ViewLogin, app.View())
	assert.Nil(t, app.Dashboard())
}

func TestAppLoginShowsDashboard(t *testing.T) {
	api := newFakeAPI(Book{ID: 1, Title: "Dune", Available: true})
	app, _ := newTestApp(api)
	defer app.Close()

	var (
		mu    sync.Mutex
		views []View
	)
	app.OnViewChange(func(v View) {
		mu.Lock()
		views = append(views, v)
		mu.Unlock()
	})

	require.NoError(t, app.Login.Submit(context.Background(), Credentials{Username: "alice", Password: "pw"}))
	assert.Equal(t, ViewDashboard, app.View())

	d := app.Dashboard()
	require.NotNil(t, d)
	require.NoError(t, d.Mount(context.Background()))
	assert.Len(t, d.State().Books, 1)
	assert.Equal(t, "alice", d.State().User.Username)

	d.Logout()
	assert.Equal(t, ViewLogin, app.View())
	assert.Nil(t, app.Dashboard())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []View{ViewDashboard, ViewLogin}, views)
}

func TestAppFreshDashboardPerLogin(t *testing.T) {
	api := newFakeAPI(Book{ID: 1, Title: "Dune", Available: true})
	app, session := newTestApp(api)
	ctx := context.Background()

	require.NoError(t, app.Login.Submit(ctx, Credentials{Username: "alice", Password: "pw"}))
	first := app.Dashboard()
	require.NoError(t, first.SetSearchTerm(ctx, "dune"))

	session.Logout()
	require.NoError(t, app.Login.Submit(ctx, Credentials{Username: "bob", Password: "pw"}))
	second := app.Dashboard()
	require.NotNil(t, second)
	assert.NotSame(t, first, second)
	assert.Empty(t, second.State().SearchTerm)
}

func TestAppRegisterFlowReturnsToLogin(t *testing.T) {
	app, _ := newTestApp(newFakeAPI())
	app.SwitchToRegister()
	assert.Equal(t, ViewRegister, app.View())

	require.NoError(t, app.Register.Submit(context.Background(), Registration{
		Username: "new", Email: "new@example.com", Password: "pw",
	}))
	assert.Eventually(t, func() bool { return app.View() == ViewLogin }, time.Second, 5*time.Millisecond)
}

func TestAppFailedLoginStaysOnLogin(t *testing.T) {
	api := newFakeAPI()
	api.setFail("login", true)
	app, session := newTestApp(api)

	assert.Error(t, app.Login.Submit(context.Background(), Credentials{Username: "alice", Password: "x"}))
	assert.Equal(t, ViewLogin, app.View())
	assert.False(t, session.Authenticated())
	assert.Equal(t, "Invalid username or password", app.Login.Error())
}

func TestViewString(t *testing.T) {
	assert.Equal(t, "login", ViewLogin.String())
	assert.Equal(t, "register", ViewRegister.String())
	assert.Equal(t, "dashboard", ViewDashboard.String())
}
