package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/jinzhu/gorm"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stitchadmin/internal/clock"
	"stitchadmin/internal/config"
	"stitchadmin/internal/estimator"
	"stitchadmin/internal/history"
	"stitchadmin/internal/models"
	"stitchadmin/internal/registry"
	"stitchadmin/internal/throughput"
	"stitchadmin/internal/timetable"
)

type fixture struct {
	db        *gorm.DB
	scheduler *Scheduler
	clock     *clock.Fixed
	history   *history.Store
}

// monday is a fixed Monday 09:00 inside every test machine's window.
var monday = time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open("sqlite3", filepath.Join(t.TempDir(), "scheduler.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.AutoMigrate(
		&models.Machine{}, &models.Order{}, &models.Thread{},
		&models.TimetableSlot{}, &models.HistoryEntry{}, &models.PositionStats{},
	).Error)

	cfg := config.DefaultScheduling()
	histStore := history.NewStore(db)
	est := estimator.New(cfg, throughput.NewModel(cfg), histStore)
	clk := &clock.Fixed{Instant: monday}

	sched := New(
		cfg,
		registry.NewMachines(db),
		registry.NewOrders(db),
		registry.NewThreadStock(db),
		est,
		timetable.New(db),
		histStore,
		clk,
		nil,
		nil,
	)
	return &fixture{db: db, scheduler: sched, clock: clk, history: histStore}
}

func (f *fixture) addMachine(t *testing.T, machineType string, status models.MachineStatus) *models.Machine {
	t.Helper()
	machine := &models.Machine{
		Name:                "test " + machineType,
		Type:                machineType,
		Status:              string(status),
		MaxSpeed:            1000,
		NumHeads:            1,
		NeedlesPerHead:      10,
		NumNeedles:          10,
		SetupMinutes:        15,
		ThreadChangeMinutes: 3,
		HoopChangeMinutes:   5,
		WorkdayStartMinute:  7 * 60,
		WorkdayEndMinute:    17 * 60,
		ActiveWeekdays:      "0123456",
	}
	require.NoError(t, f.db.Create(machine).Error)
	return machine
}

func (f *fixture) addOrder(t *testing.T, status models.OrderStatus) *models.Order {
	t.Helper()
	order := &models.Order{
		ProductionType: models.ProductionTypeEmbroidery,
		Priority:       string(models.PriorityNormal),
		Status:         string(status),
		Quantity:       1,
		StitchCount:    5000,
		ThreadColors:   "1801",
		Position:       "chest_left",
	}
	require.NoError(t, f.db.Create(order).Error)
	return order
}

func TestAssignCommitsSlotAndEstimate(t *testing.T) {
	f := newFixture(t)
	machine := f.addMachine(t, string(models.MachineTypeEmbroidery), models.MachineStatusActive)
	order := f.addOrder(t, models.OrderStatusAccepted)

	assignment, err := f.scheduler.Assign(order.ID, machine.ID, monday)
	require.NoError(t, err)

	assert.Equal(t, order.ID, assignment.OrderID)
	assert.Equal(t, machine.ID, assignment.MachineID)
	assert.Equal(t, monday, assignment.EstimatedStart)
	assert.Equal(t, 28.0, assignment.EstimatedMinutes) // physical baseline, empty history
	assert.Equal(t, estimator.ConfidenceLow, assignment.Confidence)
}

func TestAssignRejectionChain(t *testing.T) {
	f := newFixture(t)
	embroidery := f.addMachine(t, string(models.MachineTypeEmbroidery), models.MachineStatusActive)
	dtf := f.addMachine(t, string(models.MachineTypeDTF), models.MachineStatusActive)
	down := f.addMachine(t, string(models.MachineTypeEmbroidery), models.MachineStatusMaintenance)

	ready := f.addOrder(t, models.OrderStatusReady)
	_, err := f.scheduler.Assign(ready.ID, embroidery.ID, monday)
	assert.True(t, models.IsReason(err, models.ReasonWrongStatus))

	accepted := f.addOrder(t, models.OrderStatusAccepted)
	_, err = f.scheduler.Assign(accepted.ID, embroidery.ID, monday)
	require.NoError(t, err)
	_, err = f.scheduler.Assign(accepted.ID, embroidery.ID, monday)
	assert.True(t, models.IsReason(err, models.ReasonAlreadyAssigned))

	embroideryOrder := f.addOrder(t, models.OrderStatusAccepted)
	_, err = f.scheduler.Assign(embroideryOrder.ID, dtf.ID, monday)
	assert.True(t, models.IsReason(err, models.ReasonIncompatible))

	_, err = f.scheduler.Assign(embroideryOrder.ID, down.ID, monday)
	assert.True(t, models.IsReason(err, models.ReasonMachineUnavailable))

	_, err = f.scheduler.Assign(9999, embroidery.ID, monday)
	assert.True(t, models.IsReason(err, models.ReasonNotFound))
}

func TestLearningLoop(t *testing.T) {
	f := newFixture(t)
	machine := f.addMachine(t, string(models.MachineTypeEmbroidery), models.MachineStatusActive)
	order := f.addOrder(t, models.OrderStatusAccepted)

	assignment, err := f.scheduler.Assign(order.ID, machine.ID, monday)
	require.NoError(t, err)
	assert.Equal(t, 28.0, assignment.EstimatedMinutes)

	_, err = f.scheduler.Start(assignment.SlotID, "mira")
	require.NoError(t, err)

	updated, err := registry.NewOrders(f.db).ByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderStatusInProgress), updated.Status)

	// Production takes 24 minutes of real time.
	f.clock.Advance(24 * time.Minute)
	entry, err := f.scheduler.Complete(assignment.SlotID, "mira", Observed{QuantityProduced: 1})
	require.NoError(t, err)

	assert.Equal(t, 24.0, entry.EffectiveMinutes)
	assert.Equal(t, order.ID, entry.OrderID)
	assert.Equal(t, models.WorkTypeEmbroideryRun, entry.WorkType)

	updated, err = registry.NewOrders(f.db).ByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderStatusReady), updated.Status)

	// One sample is below the medium threshold: still the baseline.
	est, err := f.scheduler.Estimate(f.addOrder(t, models.OrderStatusAccepted).ID, machine.ID)
	require.NoError(t, err)
	assert.Equal(t, 28.0, est.Minutes)
	assert.Equal(t, estimator.ConfidenceLow, est.Confidence)
	assert.Equal(t, 1, est.SampleCount)

	// Nine more identical completions push the estimator onto history.
	for i := 0; i < 9; i++ {
		o := f.addOrder(t, models.OrderStatusAccepted)
		a, err := f.scheduler.Assign(o.ID, machine.ID, f.clock.Now())
		require.NoError(t, err)
		_, err = f.scheduler.Start(a.SlotID, "mira")
		require.NoError(t, err)
		f.clock.Advance(24 * time.Minute)
		_, err = f.scheduler.Complete(a.SlotID, "mira", Observed{QuantityProduced: 1})
		require.NoError(t, err)
	}

	est, err = f.scheduler.Estimate(f.addOrder(t, models.OrderStatusAccepted).ID, machine.ID)
	require.NoError(t, err)
	assert.Equal(t, 23.0, est.Minutes) // 24 × 0.95, rounded
	assert.Equal(t, estimator.ConfidenceMedium, est.Confidence)
	assert.Equal(t, 10, est.SampleCount)
}

func TestSecondStartFails(t *testing.T) {
	f := newFixture(t)
	machine := f.addMachine(t, string(models.MachineTypeEmbroidery), models.MachineStatusActive)
	order := f.addOrder(t, models.OrderStatusAccepted)

	assignment, err := f.scheduler.Assign(order.ID, machine.ID, monday)
	require.NoError(t, err)
	_, err = f.scheduler.Start(assignment.SlotID, "mira")
	require.NoError(t, err)

	_, err = f.scheduler.Start(assignment.SlotID, "mira")
	assert.True(t, models.IsReason(err, models.ReasonWrongStatus))
}

func TestCancelRevertsStartedOrder(t *testing.T) {
	f := newFixture(t)
	machine := f.addMachine(t, string(models.MachineTypeEmbroidery), models.MachineStatusActive)
	order := f.addOrder(t, models.OrderStatusAccepted)

	assignment, err := f.scheduler.Assign(order.ID, machine.ID, monday)
	require.NoError(t, err)
	_, err = f.scheduler.Start(assignment.SlotID, "mira")
	require.NoError(t, err)

	_, err = f.scheduler.Cancel(assignment.SlotID, "thread break, restitching later")
	require.NoError(t, err)

	updated, err := registry.NewOrders(f.db).ByID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderStatusAccepted), updated.Status)

	// The order can be assigned again.
	_, err = f.scheduler.Assign(order.ID, machine.ID, monday)
	require.NoError(t, err)
}

func TestPauseReducesEffectiveDuration(t *testing.T) {
	f := newFixture(t)
	machine := f.addMachine(t, string(models.MachineTypeEmbroidery), models.MachineStatusActive)
	order := f.addOrder(t, models.OrderStatusAccepted)

	assignment, err := f.scheduler.Assign(order.ID, machine.ID, monday)
	require.NoError(t, err)
	_, err = f.scheduler.Start(assignment.SlotID, "mira")
	require.NoError(t, err)

	f.clock.Advance(60 * time.Minute)
	_, err = f.scheduler.AddPause(assignment.SlotID, 20)
	require.NoError(t, err)

	entry, err := f.scheduler.Complete(assignment.SlotID, "mira", Observed{QuantityProduced: 1})
	require.NoError(t, err)
	assert.Equal(t, 40.0, entry.EffectiveMinutes)
}

func TestPlanningViewGroupsAndFlagsStock(t *testing.T) {
	f := newFixture(t)
	f.addMachine(t, string(models.MachineTypeEmbroidery), models.MachineStatusActive)
	f.addMachine(t, string(models.MachineTypeDTF), models.MachineStatusActive)

	require.NoError(t, f.db.Create(&models.Thread{ColorCode: "1801", QuantityOnHand: 10, MinStock: 3}).Error)
	require.NoError(t, f.db.Create(&models.Thread{ColorCode: "1147", QuantityOnHand: 2, MinStock: 5}).Error)

	plenty := f.addOrder(t, models.OrderStatusAccepted)

	scarce := &models.Order{
		ProductionType: models.ProductionTypeEmbroidery,
		Priority:       string(models.PriorityUrgent),
		Status:         string(models.OrderStatusAccepted),
		Quantity:       2,
		StitchCount:    4000,
		ThreadColors:   "1801,1147",
		Position:       "back_large",
	}
	require.NoError(t, f.db.Create(scarce).Error)

	printOrder := &models.Order{
		ProductionType: models.ProductionTypePrinting,
		Priority:       string(models.PriorityNormal),
		Status:         string(models.OrderStatusAccepted),
		Quantity:       5,
		PrintWidthCM:   20,
		PrintHeightCM:  30,
	}
	require.NoError(t, f.db.Create(printOrder).Error)

	view, err := f.scheduler.Planning()
	require.NoError(t, err)

	require.Len(t, view.Embroidery, 2)
	require.Len(t, view.DTF, 1)

	// Urgent before normal, regardless of insertion order.
	assert.Equal(t, scarce.ID, view.Embroidery[0].Order.ID)
	assert.True(t, view.Embroidery[0].LowStock)
	assert.Equal(t, plenty.ID, view.Embroidery[1].Order.ID)
	assert.False(t, view.Embroidery[1].LowStock)

	for _, entry := range view.Embroidery {
		assert.Greater(t, entry.Estimate.Minutes, 0.0)
		assert.Equal(t, estimator.ConfidenceLow, entry.Estimate.Confidence)
	}
}

func TestPlanningViewHidesAssignedOrders(t *testing.T) {
	f := newFixture(t)
	machine := f.addMachine(t, string(models.MachineTypeEmbroidery), models.MachineStatusActive)
	order := f.addOrder(t, models.OrderStatusAccepted)

	unassigned, err := f.scheduler.Unassigned()
	require.NoError(t, err)
	require.Len(t, unassigned, 1)

	_, err = f.scheduler.Assign(order.ID, machine.ID, monday)
	require.NoError(t, err)

	view, err := f.scheduler.Planning()
	require.NoError(t, err)
	assert.Empty(t, view.Embroidery)

	unassigned, err = f.scheduler.Unassigned()
	require.NoError(t, err)
	assert.Empty(t, unassigned)
}

func TestMachineScheduleAndHistoryQueries(t *testing.T) {
	f := newFixture(t)
	machine := f.addMachine(t, string(models.MachineTypeEmbroidery), models.MachineStatusActive)
	order := f.addOrder(t, models.OrderStatusAccepted)

	assignment, err := f.scheduler.Assign(order.ID, machine.ID, monday)
	require.NoError(t, err)

	slots, err := f.scheduler.MachineSchedule(machine.ID, monday.Add(-time.Hour), monday.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, order.ID, slots[0].OrderID)

	_, err = f.scheduler.MachineSchedule(9999, monday, monday.AddDate(0, 0, 1))
	assert.True(t, models.IsReason(err, models.ReasonNotFound))

	_, err = f.scheduler.Start(assignment.SlotID, "mira")
	require.NoError(t, err)
	f.clock.Advance(30 * time.Minute)
	_, err = f.scheduler.Complete(assignment.SlotID, "mira", Observed{QuantityProduced: 1})
	require.NoError(t, err)

	entries, err := f.scheduler.TimeHistory(order.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 30.0, entries[0].EffectiveMinutes)
}
