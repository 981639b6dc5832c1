package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/rkode/internal/dynamo"
)

var _ = Describe("History", func() {
	It("keeps every entry without a limit", func() {
		h := NewHistory(0)
		h.seed(0.1, 0.01, 2)
		for i := 1; i <= 5; i++ {
			h.attempt(float64(i))
		}
		Expect(h.DT()).To(Equal([]float64{0.1, 1, 2, 3, 4, 5}))
		Expect(h.E()).To(Equal([]dynamo.State{{0, 0}}))
	})

	It("keeps the most recent entries with a limit", func() {
		h := NewHistory(3)
		h.seed(0.1, 0.01, 1)
		for i := 1; i <= 5; i++ {
			h.attempt(float64(i))
			h.accept(float64(i)/10, dynamo.State{float64(i)})
		}

		Expect(h.DT()).To(Equal([]float64{3, 4, 5}))
		Expect(h.R()).To(Equal([]float64{0.3, 0.4, 0.5}))
		Expect(h.E()).To(Equal([]dynamo.State{{3}, {4}, {5}}))

		dt, r, e := h.Recorded()
		Expect([]int{dt, r, e}).To(Equal([]int{6, 6, 6}))
	})

	It("returns copies", func() {
		h := NewHistory(2)
		h.attempt(1)
		h.attempt(2)
		h.attempt(3)

		dt := h.DT()
		dt[0] = 99
		Expect(h.DT()).To(Equal([]float64{2, 3}))
	})
})
