package logic

import (
	"errors"
	"testing"
)

func faultConfig() Config {
	return Config{
		ValidMin:          100,
		ValidMax:          500,
		DeltaThreshold:    5,
		FaultConfirm:      2,
		RecoverConfirm:    5,
		MaxScheduleMisses: 3,
		MaxBudgetMisses:   3,
	}
}

func TestFaultFirstSampleSkipsContinuity(t *testing.T) {
	f := NewFaultTracker(faultConfig())
	rec := &SampleRecord{MoistureValue: 300, LastMoistureValue: 0}

	if v := f.Evaluate(rec, 0); v != VerdictClean {
		t.Errorf("first sample: got verdict %d, want clean", v)
	}
	if rec.LastMoistureValue != 300 {
		t.Errorf("LastMoistureValue: got %d, want 300", rec.LastMoistureValue)
	}
}

func TestFaultContinuity(t *testing.T) {
	tests := []struct {
		name string
		next uint16
		want Verdict
	}{
		{"within delta above", 305, VerdictClean},
		{"within delta below", 295, VerdictClean},
		{"jump above", 306, VerdictSuspect},
		{"jump below", 294, VerdictSuspect},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFaultTracker(faultConfig())
			rec := &SampleRecord{MoistureValue: 300}
			f.Evaluate(rec, 0)

			rec.MoistureValue = tt.next
			if got := f.Evaluate(rec, 0); got != tt.want {
				t.Errorf("verdict: got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestFaultRangeBoundsInclusive(t *testing.T) {
	tests := []struct {
		value uint16
		want  Verdict
	}{
		{99, VerdictSuspect},
		{100, VerdictClean},
		{500, VerdictClean},
		{501, VerdictSuspect},
	}

	for _, tt := range tests {
		f := NewFaultTracker(faultConfig())
		rec := &SampleRecord{MoistureValue: tt.value}
		if got := f.Evaluate(rec, 0); got != tt.want {
			t.Errorf("value %d: got verdict %d, want %d", tt.value, got, tt.want)
		}
	}
}

func TestFaultConfirmationNeedsConsecutiveAnomalies(t *testing.T) {
	cfg := faultConfig()
	cfg.FaultConfirm = 3
	cfg.DeltaThreshold = 400
	f := NewFaultTracker(cfg)
	rec := &SampleRecord{}

	// N-1 anomalies, then a clean reading, repeated: never latches.
	for round := 0; round < 3; round++ {
		for _, v := range []uint16{600, 600, 300} {
			rec.MoistureValue = v
			f.Evaluate(rec, 0)
		}
		if f.FaultFlag {
			t.Fatalf("round %d: fault latched before %d consecutive anomalies", round, cfg.FaultConfirm)
		}
		if f.FaultConfirmCounter != 0 {
			t.Fatalf("round %d: FaultConfirmCounter got %d, want 0 after clean reading", round, f.FaultConfirmCounter)
		}
	}

	for i, v := range []uint16{600, 600, 600} {
		rec.MoistureValue = v
		verdict := f.Evaluate(rec, 0)
		if i < 2 && verdict != VerdictSuspect {
			t.Errorf("anomaly %d: got verdict %d, want suspect", i, verdict)
		}
		if i == 2 && verdict != VerdictSensorFault {
			t.Errorf("anomaly %d: got verdict %d, want sensor fault", i, verdict)
		}
	}
	if !f.FaultFlag || f.LastFaultCode != FaultSensorInvalid || f.FaultCount != 1 {
		t.Errorf("after latch: flag=%v code=%s count=%d", f.FaultFlag, f.LastFaultCode, f.FaultCount)
	}
}

func TestFaultReadErrorIsAnomalous(t *testing.T) {
	f := NewFaultTracker(faultConfig())
	rec := &SampleRecord{MoistureValue: 300}
	f.Evaluate(rec, 0)

	rec.ReadErr = errors.New("serial timeout")
	if v := f.Evaluate(rec, 0); v != VerdictSuspect {
		t.Errorf("read error: got verdict %d, want suspect", v)
	}
	if rec.LastMoistureValue != 300 {
		t.Errorf("read error must not move the continuity reference, got %d", rec.LastMoistureValue)
	}

	rec.ReadErr = nil
	rec.MoistureValue = 302
	if v := f.Evaluate(rec, 0); v != VerdictClean {
		t.Errorf("after read error: got verdict %d, want clean", v)
	}
}

func TestFaultTimerPrecedence(t *testing.T) {
	tests := []struct {
		name           string
		scheduleMisses uint32
		budgetMisses   uint32
	}{
		{"schedule misses", 4, 0},
		{"budget misses", 0, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFaultTracker(faultConfig())
			// Out-of-range reading as well: the timer fault still wins.
			rec := &SampleRecord{MoistureValue: 900, BudgetMisses: tt.budgetMisses}

			if v := f.Evaluate(rec, tt.scheduleMisses); v != VerdictTimerFault {
				t.Fatalf("got verdict %d, want timer fault", v)
			}
			if f.LastFaultCode != FaultTimerInvalid {
				t.Errorf("LastFaultCode: got %s, want TIMER_INVALID", f.LastFaultCode)
			}
			if f.FaultCount != 1 {
				t.Errorf("FaultCount: got %d, want 1", f.FaultCount)
			}
		})
	}
}

func TestFaultTimerAtLimitIsTolerated(t *testing.T) {
	f := NewFaultTracker(faultConfig())
	rec := &SampleRecord{MoistureValue: 300, BudgetMisses: 3}

	if v := f.Evaluate(rec, 3); v != VerdictClean {
		t.Errorf("misses equal to the maximum: got verdict %d, want clean", v)
	}
}

func latchedSensorFault(t *testing.T) (*FaultTracker, *SampleRecord) {
	t.Helper()
	f := NewFaultTracker(faultConfig())
	f.latch(FaultSensorInvalid)
	return &f, &SampleRecord{LastMoistureValue: 601}
}

func TestSensorRecoveryRequiresStrictlyMoreThanThreshold(t *testing.T) {
	f, rec := latchedSensorFault(t)
	rec.MoistureValue = 303

	for i := 1; i <= 5; i++ {
		if f.CheckSensorRecovery(rec) {
			t.Fatalf("recovery granted after %d clean readings, threshold is 5", i)
		}
		if f.RecoverConfirmCounter != i {
			t.Errorf("RecoverConfirmCounter: got %d, want %d", f.RecoverConfirmCounter, i)
		}
	}
	if !f.CheckSensorRecovery(rec) {
		t.Error("expected recovery on sixth clean reading")
	}
}

func TestSensorRecoveryResetByBadReading(t *testing.T) {
	f, rec := latchedSensorFault(t)

	rec.MoistureValue = 303
	for i := 0; i < 5; i++ {
		f.CheckSensorRecovery(rec)
	}

	rec.MoistureValue = 350 // discontinuous
	if f.CheckSensorRecovery(rec) {
		t.Fatal("discontinuous reading must not grant recovery")
	}
	if f.RecoverConfirmCounter != 0 {
		t.Errorf("RecoverConfirmCounter: got %d, want 0", f.RecoverConfirmCounter)
	}
	if !f.FaultFlag {
		t.Error("fault must stay latched")
	}
}

func TestTimerRecovery(t *testing.T) {
	f := NewFaultTracker(faultConfig())
	f.latch(FaultTimerInvalid)
	rec := &SampleRecord{MoistureValue: 300}

	for i := 0; i < 5; i++ {
		if f.CheckTimerRecovery(rec, 0, true) {
			t.Fatalf("recovery granted early at cycle %d", i)
		}
	}
	if f.CheckTimerRecovery(rec, 1, true) {
		t.Fatal("late cycle must not grant recovery")
	}
	if f.RecoverConfirmCounter != 0 {
		t.Errorf("RecoverConfirmCounter after late cycle: got %d, want 0", f.RecoverConfirmCounter)
	}
	for i := 0; i < 5; i++ {
		f.CheckTimerRecovery(rec, 0, true)
	}
	if f.CheckTimerRecovery(rec, 0, false) {
		t.Fatal("over-budget read must not grant recovery")
	}
	for i := 0; i < 5; i++ {
		f.CheckTimerRecovery(rec, 0, true)
	}
	if !f.CheckTimerRecovery(rec, 0, true) {
		t.Error("expected recovery after six clean cycles")
	}
}

func TestFaultClear(t *testing.T) {
	f, _ := latchedSensorFault(t)
	f.RecoverConfirmCounter = 6
	f.Clear()

	if f.FaultFlag || f.FaultConfirmCounter != 0 || f.RecoverConfirmCounter != 0 {
		t.Errorf("after Clear: flag=%v confirm=%d recover=%d", f.FaultFlag, f.FaultConfirmCounter, f.RecoverConfirmCounter)
	}
	if f.FaultCount != 1 || f.LastFaultCode != FaultSensorInvalid {
		t.Errorf("Clear must keep history: count=%d code=%s", f.FaultCount, f.LastFaultCode)
	}
}
