package correlate_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/splice/pkg/correlate"
	"github.com/papercomputeco/splice/pkg/embedding"
	"github.com/papercomputeco/splice/pkg/logger"
	"github.com/papercomputeco/splice/pkg/retry"
	"github.com/papercomputeco/splice/pkg/source"
	testutils "github.com/papercomputeco/splice/pkg/utils/test"
)

func fastPolicy() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
}

var _ = Describe("Orchestrator", func() {
	var (
		ctx          context.Context
		registry     *source.Registry
		adapter      *testutils.MockAdapter
		orchestrator *correlate.Orchestrator
	)

	BeforeEach(func() {
		ctx = context.Background()
		adapter = testutils.NewMockAdapter("L100", "L101")
		registry = source.NewRegistry()
		registry.Register(embedding.EntityProperty, adapter)
		orchestrator = correlate.NewOrchestrator(registry, fastPolicy(), logger.Nop())
	})

	ids := func(in ...string) correlate.IdentifierSet {
		s := correlate.IdentifierSet{}
		for _, id := range in {
			s.Add(id)
		}
		return s
	}

	It("makes one sorted bulk call per entity type", func() {
		found, err := orchestrator.Lookup(ctx, embedding.EntityProperty, ids("L101", "L999", "L100"))
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(2))
		Expect(found).To(HaveKey("L100"))
		Expect(adapter.Requests).To(Equal([][]string{{"L100", "L101", "L999"}}))
	})

	It("does not call the adapter for an empty set", func() {
		found, err := orchestrator.Lookup(ctx, embedding.EntityProperty, ids())
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(BeEmpty())
		Expect(adapter.Calls()).To(BeZero())
	})

	It("retries transient adapter failures", func() {
		adapter.FailTimes = 2
		found, err := orchestrator.Lookup(ctx, embedding.EntityProperty, ids("L100"))
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveKey("L100"))
		Expect(adapter.Calls()).To(Equal(3))
	})

	It("wraps exhausted failures in a LookupError", func() {
		adapter.FailAlways = true
		_, err := orchestrator.Lookup(ctx, embedding.EntityProperty, ids("L100"))

		var lerr *source.LookupError
		Expect(err).To(BeAssignableToTypeOf(lerr))
		Expect(err).To(MatchError(testutils.ErrMockAdapter))
		Expect(adapter.Calls()).To(Equal(3))
	})

	It("fails fast for an unknown entity type", func() {
		_, err := orchestrator.Lookup(ctx, embedding.EntityNeighborhood, ids("N1"))
		Expect(err).To(MatchError(source.ErrUnknownEntityType))
	})

	It("drops rows the adapter returned but nobody asked for", func() {
		registry.Register(embedding.EntityNeighborhood, extraRows{})
		found, err := orchestrator.Lookup(ctx, embedding.EntityNeighborhood, ids("N1"))
		Expect(err).NotTo(HaveOccurred())
		Expect(found).To(HaveLen(1))
		Expect(found).To(HaveKey("N1"))
	})

	Describe("Universe", func() {
		It("is unavailable for adapters that cannot enumerate", func() {
			universe, ok, err := orchestrator.Universe(ctx, embedding.EntityProperty)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(universe).To(BeNil())
		})

		It("lists every identifier of an enumerating adapter", func() {
			registry.Register(embedding.EntityNeighborhood, testutils.NewMockEnumeratingAdapter("N2", "N1"))
			universe, ok, err := orchestrator.Universe(ctx, embedding.EntityNeighborhood)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(universe).To(Equal([]string{"N1", "N2"}))
		})
	})
})

type extraRows struct{}

func (extraRows) BulkGet(_ context.Context, ids []string) (map[string]source.Record, error) {
	out := map[string]source.Record{"N-extra": {ID: "N-extra"}}
	for _, id := range ids {
		out[id] = source.Record{ID: id}
	}
	return out, nil
}
