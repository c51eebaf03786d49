package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/tomasim/timing/cache"
)

var _ = Describe("Cache", func() {
	var c *cache.Cache

	BeforeEach(func() {
		// 256B, 2-way, 32B lines: 4 sets
		var err error
		c, err = cache.New(cache.Config{
			Size:          256,
			Associativity: 2,
			BlockSize:     32,
			HitLatency:    1,
			MissLatency:   10,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	It("should miss on a cold cache and hit afterwards", func() {
		Expect(c.Access(0x1000, false)).To(Equal(uint64(10)))
		Expect(c.Access(0x1004, false)).To(Equal(uint64(1)))
		Expect(c.Access(0x101C, true)).To(Equal(uint64(1)))

		stats := c.Stats()
		Expect(stats.Reads).To(Equal(uint64(2)))
		Expect(stats.Writes).To(Equal(uint64(1)))
		Expect(stats.Hits).To(Equal(uint64(2)))
		Expect(stats.Misses).To(Equal(uint64(1)))
		Expect(stats.HitRate()).To(BeNumerically("~", 2.0/3.0, 1e-9))
	})

	It("should allocate on a write miss", func() {
		Expect(c.Access(0x2000, true)).To(Equal(uint64(10)))
		Expect(c.Contains(0x2010)).To(BeTrue())
		Expect(c.Contains(0x2020)).To(BeFalse())
	})

	It("should evict the least recently used line of a set", func() {
		// 0x0000, 0x0080 and 0x0100 map to set 0
		c.Access(0x0000, true)
		c.Access(0x0080, false)
		c.Access(0x0000, false)
		c.Access(0x0100, false)

		Expect(c.Contains(0x0000)).To(BeTrue())
		Expect(c.Contains(0x0080)).To(BeFalse())
		Expect(c.Contains(0x0100)).To(BeTrue())
		Expect(c.Stats().Evictions).To(Equal(uint64(1)))
		Expect(c.Stats().Writebacks).To(BeZero())

		// evicts the dirty line at 0x0000
		c.Access(0x0180, false)
		Expect(c.Contains(0x0000)).To(BeFalse())
		Expect(c.Stats().Writebacks).To(Equal(uint64(1)))
	})

	It("should forget everything on reset", func() {
		c.Access(0x40, false)
		c.Reset()

		Expect(c.Contains(0x40)).To(BeFalse())
		Expect(c.Stats()).To(Equal(cache.Statistics{}))
		Expect(c.Access(0x40, false)).To(Equal(uint64(10)))
	})

	DescribeTable("should reject bad geometry",
		func(config cache.Config) {
			_, err := cache.New(config)
			Expect(err).To(HaveOccurred())
		},
		Entry("block size not a power of two", cache.Config{Size: 96, Associativity: 1, BlockSize: 24, HitLatency: 1, MissLatency: 2}),
		Entry("size not a multiple of a set", cache.Config{Size: 100, Associativity: 2, BlockSize: 32, HitLatency: 1, MissLatency: 2}),
		Entry("zero hit latency", cache.Config{Size: 64, Associativity: 2, BlockSize: 32, HitLatency: 0, MissLatency: 2}),
		Entry("miss faster than hit", cache.Config{Size: 64, Associativity: 2, BlockSize: 32, HitLatency: 3, MissLatency: 2}),
	)

	It("should accept the default configuration", func() {
		Expect(cache.DefaultConfig().Validate()).To(Succeed())
	})
})
