package registry

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"stevedore/internal/engine"
)

func testStore() *Store {
	return NewStore(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})))
}

func rt(id string, status engine.Status) engine.Runtime {
	return engine.Runtime{ID: id, Kind: engine.KindDocker, Status: status}
}

func TestSetRuntimesReplacesWholesale(t *testing.T) {
	s := testStore()
	s.SetRuntimes([]engine.Runtime{rt("a", engine.StatusRunning), rt("b", engine.StatusStopped)})
	s.SetRuntimes([]engine.Runtime{rt("c", engine.StatusRunning)})

	runtimes := s.Runtimes()
	if len(runtimes) != 1 || runtimes[0].ID != "c" {
		t.Errorf("runtimes = %+v, want only c", runtimes)
	}
}

func TestSelectedIsACopy(t *testing.T) {
	s := testStore()
	a := rt("a", engine.StatusRunning)
	s.SetRuntimes([]engine.Runtime{a})
	s.SetSelected(&a)

	a.Status = engine.StatusError
	if got := s.Selected().Status; got != engine.StatusRunning {
		t.Errorf("selected status = %q, caller mutation leaked into store", got)
	}
}

func TestSetRuntimesKeepsSurvivingSelection(t *testing.T) {
	s := testStore()
	a := rt("a", engine.StatusStopped)
	s.SetRuntimes([]engine.Runtime{a})
	s.SetSelected(&a)

	s.SetRuntimes([]engine.Runtime{rt("a", engine.StatusRunning), rt("b", engine.StatusStopped)})
	selected := s.Selected()
	if selected == nil || selected.ID != "a" {
		t.Fatalf("selected = %+v, want a", selected)
	}
	if selected.Status != engine.StatusRunning {
		t.Errorf("selected status = %q, want refreshed copy from new list", selected.Status)
	}
}

func TestSetRuntimesClearsVanishedSelection(t *testing.T) {
	s := testStore()
	a := rt("a", engine.StatusRunning)
	s.SetRuntimes([]engine.Runtime{a})
	s.SetSelected(&a)

	s.SetRuntimes([]engine.Runtime{rt("b", engine.StatusRunning)})
	if s.Selected() != nil {
		t.Error("selection should be cleared when its engine vanishes")
	}
}

func TestUpdateStatusOverwritesSelectedCopy(t *testing.T) {
	s := testStore()
	a := rt("a", engine.StatusRunning)
	s.SetRuntimes([]engine.Runtime{a})
	s.SetSelected(&a)

	at := time.Now()
	s.UpdateStatus("a", engine.StatusError, at, "daemon gone")

	runtimes := s.Runtimes()
	if runtimes[0].Status != engine.StatusError || runtimes[0].Error != "daemon gone" {
		t.Errorf("runtime not updated: %+v", runtimes[0])
	}
	selected := s.Selected()
	if selected.Status != engine.StatusError {
		t.Error("selected copy not updated alongside the list entry")
	}
	if !selected.LastChecked.Equal(at) {
		t.Errorf("selected last checked = %v, want %v", selected.LastChecked, at)
	}
}

func TestUpdateStatusUnknownIDIsNoOp(t *testing.T) {
	s := testStore()
	s.SetRuntimes([]engine.Runtime{rt("a", engine.StatusRunning)})

	s.UpdateStatus("nope", engine.StatusError, time.Now(), "late update")

	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
	if s.Runtimes()[0].Status != engine.StatusRunning {
		t.Error("existing runtime should be untouched")
	}
}

func TestAddRuntimeOverwritesDuplicateID(t *testing.T) {
	s := testStore()
	s.AddRuntime(rt("a", engine.StatusStopped))
	s.AddRuntime(rt("a", engine.StatusRunning))

	if s.Len() != 1 {
		t.Fatalf("len = %d, want 1", s.Len())
	}
	if s.Runtimes()[0].Status != engine.StatusRunning {
		t.Error("duplicate add should overwrite")
	}
}

func TestRemoveRuntimeClearsMatchingSelection(t *testing.T) {
	s := testStore()
	a := rt("a", engine.StatusRunning)
	b := rt("b", engine.StatusRunning)
	s.SetRuntimes([]engine.Runtime{a, b})
	s.SetSelected(&a)

	s.RemoveRuntime("a")
	if s.Len() != 1 {
		t.Errorf("len = %d, want 1", s.Len())
	}
	if s.Selected() != nil {
		t.Error("selection should be cleared on removal")
	}

	s.SetSelected(&b)
	s.RemoveRuntime("a") // already gone
	if s.Selected() == nil {
		t.Error("unrelated removal must not clear selection")
	}
}

func TestClear(t *testing.T) {
	s := testStore()
	a := rt("a", engine.StatusRunning)
	s.SetRuntimes([]engine.Runtime{a})
	s.SetSelected(&a)
	s.SetDetecting(true)
	s.SetError("boom")

	s.Clear()
	if s.Len() != 0 || s.Selected() != nil || s.Detecting() || s.LastError() != "" {
		t.Error("clear should reset engines, selection, flags, and error slot")
	}
}

func TestOccupancyNotifications(t *testing.T) {
	s := testStore()
	var counts []int
	s.OnOccupancyChange(func(n int) { counts = append(counts, n) })

	s.SetRuntimes([]engine.Runtime{rt("a", engine.StatusRunning)})
	s.AddRuntime(rt("b", engine.StatusRunning))
	s.AddRuntime(rt("b", engine.StatusStopped)) // overwrite, no size change
	s.SetRuntimes([]engine.Runtime{rt("a", engine.StatusRunning), rt("c", engine.StatusRunning)})
	s.RemoveRuntime("c")
	s.Clear()

	want := []int{1, 2, 1, 0}
	if len(counts) != len(want) {
		t.Fatalf("notifications = %v, want %v", counts, want)
	}
	for i := range want {
		if counts[i] != want[i] {
			t.Errorf("notification %d = %d, want %d", i, counts[i], want[i])
		}
	}
}

func TestLeaseSingleAcquisition(t *testing.T) {
	s := testStore()
	if !s.Acquire("c1", engine.OpStart) {
		t.Fatal("first acquire should succeed")
	}
	if s.Acquire("c1", engine.OpStop) {
		t.Error("second acquire on held id should fail")
	}
	if op, held := s.InFlight("c1"); !held || op != engine.OpStart {
		t.Errorf("in-flight = %q, %v", op, held)
	}

	s.Release("c1")
	if _, held := s.InFlight("c1"); held {
		t.Error("release should clear the lease")
	}
	if !s.Acquire("c1", engine.OpStop) {
		t.Error("acquire after release should succeed")
	}
}

func TestLeasesIndependentPerContainer(t *testing.T) {
	s := testStore()
	if !s.Acquire("c1", engine.OpStart) || !s.Acquire("c2", engine.OpStart) {
		t.Error("leases for different containers must not block each other")
	}
}
