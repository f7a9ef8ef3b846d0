package evaluationstore_test

import (
	"errors"
	"sync"
	"testing"

	evaluationstore "github.com/calebdock/comphub/internal/app/store/evaluations"
	"github.com/calebdock/comphub/internal/domain/models"
	"github.com/calebdock/comphub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestCreate_DuplicateJudge(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx := testutil.TestContext(t)
	store := evaluationstore.New(db)

	subID := primitive.NewObjectID()
	judgeID := primitive.NewObjectID()

	if _, err := store.Create(ctx, models.Evaluation{
		SubmissionID: subID,
		JudgeID:      judgeID,
		Score:        80,
	}); err != nil {
		t.Fatalf("first evaluation: %v", err)
	}

	_, err := store.Create(ctx, models.Evaluation{
		SubmissionID: subID,
		JudgeID:      judgeID,
		Score:        90,
	})
	if !errors.Is(err, evaluationstore.ErrDuplicateJudge) {
		t.Errorf("second evaluation by same judge: got %v, want ErrDuplicateJudge", err)
	}
}

func TestFinalize_ExactlyOneWinner(t *testing.T) {
	db := testutil.SetupIndexedDB(t)
	ctx := testutil.TestContext(t)
	store := evaluationstore.New(db)

	ev, err := store.Create(ctx, models.Evaluation{
		SubmissionID: primitive.NewObjectID(),
		JudgeID:      primitive.NewObjectID(),
		Score:        50,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	const finalizers = 10
	var wg sync.WaitGroup
	results := make(chan error, finalizers)
	for i := 0; i < finalizers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Finalize(ctx, ev.ID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var won, lost int
	for err := range results {
		switch {
		case err == nil:
			won++
		case errors.Is(err, evaluationstore.ErrAlreadyFinalized):
			lost++
		default:
			t.Fatalf("unexpected finalize error: %v", err)
		}
	}
	if won != 1 {
		t.Errorf("winners: got %d, want exactly 1", won)
	}
	if lost != finalizers-1 {
		t.Errorf("losers: got %d, want %d", lost, finalizers-1)
	}

	got, err := store.GetByID(ctx, ev.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !got.Finalized {
		t.Error("evaluation should be finalized")
	}
	if got.FinalizedAt.IsZero() {
		t.Error("finalized_at should be set")
	}
}
