package supervisor

import (
	"github.com/turtacn/Vigil/pkg/consts"
	"github.com/turtacn/Vigil/pkg/fsm"
	"github.com/turtacn/Vigil/pkg/logger"
)

const (
	eventEnvironment fsm.Event = "environment"
	eventDisplay     fsm.Event = "display"
	eventDesktop     fsm.Event = "desktop"
	eventAwait       fsm.Event = "await"
	eventTeardown    fsm.Event = "teardown"
	eventDone        fsm.Event = "done"
)

func newLifecycle() *fsm.StateMachine {
	m := fsm.New(fsm.State(consts.StateIdle))

	m.AddTransition(fsm.State(consts.StateIdle), fsm.State(consts.StateEnvironmentPrepared), eventEnvironment, nil)
	m.AddTransition(fsm.State(consts.StateEnvironmentPrepared), fsm.State(consts.StateDisplayServer), eventDisplay, nil)
	m.AddTransition(fsm.State(consts.StateDisplayServer), fsm.State(consts.StateDesktop), eventDesktop, nil)
	m.AddTransition(fsm.State(consts.StateDesktop), fsm.State(consts.StateAwaitingLogout), eventAwait, nil)

	// Teardown is reachable from every state after the inbox is bound.
	for _, from := range []consts.SessionState{
		consts.StateEnvironmentPrepared,
		consts.StateDisplayServer,
		consts.StateDesktop,
		consts.StateAwaitingLogout,
	} {
		m.AddTransition(fsm.State(from), fsm.State(consts.StateTearingDown), eventTeardown, nil)
	}
	m.AddTransition(fsm.State(consts.StateTearingDown), fsm.State(consts.StateDone), eventDone, nil)
	return m
}

// fire advances m by ev and reports whether it moved. An event the current
// state does not accept leaves the machine where it is.
func fire(m *fsm.StateMachine, ev fsm.Event) bool {
	if !m.Can(ev) {
		logger.Log.Error("Supervisor: Invalid lifecycle transition", "event", ev, "state", m.Current())
		return false
	}
	if err := m.Fire(ev); err != nil {
		logger.Log.Error("Supervisor: Lifecycle transition failed", "event", ev, "state", m.Current(), "err", err)
		return false
	}
	return true
}

// Personal.AI order the ending
