package models

import "testing"

func TestInboundMessageRequest_Validate(t *testing.T) {
	req := InboundMessageRequest{
		LeadID:       "lead-1",
		ConsultantID: "cons-1",
		Channel:      ChannelWhatsApp,
		UserMessage:  "oi, quero saber mais",
	}
	if err := req.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bad := req
	bad.LeadID = ""
	if err := bad.Validate(); err != ErrEmptyLeadID {
		t.Errorf("expected ErrEmptyLeadID, got %v", err)
	}

	bad = req
	bad.Channel = "telegram"
	if err := bad.Validate(); err != ErrInvalidChannel {
		t.Errorf("expected ErrInvalidChannel, got %v", err)
	}

	bad = req
	bad.UserMessage = ""
	if err := bad.Validate(); err != ErrEmptyMessage {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestNextStage_ProductTrack(t *testing.T) {
	cases := []struct {
		current Stage
		want    Stage
	}{
		{StageIceBreak, StageSituation},
		{StageSituation, StageProblem},
		{StageProblem, StageImplication},
		{StageImplication, StageCommitment},
		{StageCommitment, StageTransition},
		{StageTransition, StageClosed},
		{StageClosed, StageClosed}, // saturates at terminal
	}
	for _, c := range cases {
		if got := NextStage(c.current, ""); got != c.want {
			t.Errorf("NextStage(%s) = %s, want %s", c.current, got, c.want)
		}
	}
}

func TestNextStage_BusinessTrack(t *testing.T) {
	cases := []struct {
		current Stage
		want    Stage
	}{
		{StageBizIceBreak, StageBizQualification},
		{StageBizQualification, StageBizImplication},
		{StageBizImplication, StageBizCommitment},
		{StageBizCommitment, StageTransition},
		{StageTransition, StageClosed},
		{StageClosed, StageClosed},
	}
	for _, c := range cases {
		if got := NextStage(c.current, ProfileTypeBusiness); got != c.want {
			t.Errorf("NextStage(%s) = %s, want %s", c.current, got, c.want)
		}
	}
}

func TestNextStage_TerminalIdempotent(t *testing.T) {
	s := StageClosed
	for i := 0; i < 5; i++ {
		s = NextStage(s, "")
		if s != StageClosed {
			t.Fatalf("stage moved past terminal: %s", s)
		}
	}
}

func TestNextStage_UnknownStageRecovers(t *testing.T) {
	if got := NextStage("bogus", ""); got != StageIceBreak {
		t.Errorf("unknown stage should map to track start, got %s", got)
	}
}

func TestNextCheckinStep(t *testing.T) {
	if got := NextCheckinStep(CheckinStepShakeAM); got != CheckinStepShakePM {
		t.Errorf("expected shake_pm, got %s", got)
	}
	if got := NextCheckinStep(CheckinStepWeight); got != CheckinStepDone {
		t.Errorf("expected done, got %s", got)
	}
	if got := NextCheckinStep(CheckinStepDone); got != CheckinStepDone {
		t.Errorf("expected done to stay done, got %s", got)
	}
}
