package matcher

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_Idempotent(t *testing.T) {
	cases := []string{"Example.COM", "example.com.", "EXAMPLE.COM.", "  example.com  "}
	for _, c := range cases {
		once := Normalize(c)
		twice := Normalize(once)
		assert.Equal(t, once, twice, "normalize should be idempotent for %q", c)
	}
}

func TestPolicy_CaseAndTrailingDotInsensitive(t *testing.T) {
	p := NewPolicy([]string{"ads.example.com"}, nil)

	assert.True(t, p.IsBlocked("ads.example.com"))
	assert.True(t, p.IsBlocked("ADS.EXAMPLE.COM"))
	assert.True(t, p.IsBlocked("ads.example.com."))
	assert.True(t, p.IsBlocked("Ads.Example.Com."))
}

func TestPolicy_WildcardNonSelf(t *testing.T) {
	p := NewPolicy(nil, []string{"example.com"})

	assert.False(t, p.IsBlocked("example.com"), "*.b must not match b itself")
	assert.True(t, p.IsBlocked("x.example.com"))
}

func TestPolicy_WildcardMultiDepth(t *testing.T) {
	p := NewPolicy(nil, []string{"example.com"})

	assert.True(t, p.IsBlocked("a.example.com"))
	assert.True(t, p.IsBlocked("b.a.example.com"))
	assert.True(t, p.IsBlocked("c.b.a.example.com"))
}

func TestPolicy_WildcardIndependence(t *testing.T) {
	p := NewPolicy(nil, []string{"example.com"})

	assert.False(t, p.IsBlocked("example.org"))
	assert.False(t, p.IsBlocked("notexample.com"))
	assert.False(t, p.IsBlocked("com"))
}

func TestPolicy_ExactAndWildcardNotRequiredDisjoint(t *testing.T) {
	// wildcard ads.example.com, exact other.com
	p := NewPolicy([]string{"other.com"}, []string{"ads.example.com"})

	assert.False(t, p.IsBlocked("ads.example.com"))
	assert.True(t, p.IsBlocked("tracker.ads.example.com"))
	assert.True(t, p.IsBlocked("other.com"))
	assert.False(t, p.IsBlocked("sub.other.com"))
}

func TestPolicy_CountAndEmpty(t *testing.T) {
	p := EmptyPolicy()
	assert.Equal(t, 0, p.Count())
	assert.False(t, p.IsBlocked("anything.com"))
	assert.False(t, p.IsBlocked(""))
	assert.False(t, p.IsBlocked("."))

	p2 := NewPolicy([]string{"a.com", "a.com"}, []string{"b.com", "b.com"})
	assert.Equal(t, 2, p2.Count())
}

func TestMatcher_IdempotentInstall(t *testing.T) {
	m := New()
	p := NewPolicy([]string{"ads.example.com"}, []string{"tracker.net"})
	m.Install(p)
	m.Install(p)

	assert.Equal(t, 2, m.Count())
	assert.True(t, m.IsBlocked("ads.example.com"))
	assert.True(t, m.IsBlocked("x.tracker.net"))
}

func TestMatcher_AtomicReload_NeverSeesMixedState(t *testing.T) {
	m := New()
	a := NewPolicy([]string{"a.com"}, nil)
	b := NewPolicy([]string{"b.com"}, nil)
	m.Install(a)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	seenInvalid := make(chan string, 1)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				p := m.Active()
				blockedA := p.IsBlocked("a.com")
				blockedB := p.IsBlocked("b.com")
				// valid states: {a.com blocked, b.com not} or {b.com blocked, a.com not}
				if blockedA == blockedB {
					select {
					case seenInvalid <- "both-or-neither":
					default:
					}
				}
			}
		}()
	}

	m.Install(b)
	m.Install(a)
	m.Install(b)
	close(stop)
	wg.Wait()

	select {
	case msg := <-seenInvalid:
		t.Fatalf("observed inconsistent policy state: %s", msg)
	default:
	}
}

func TestBloomPrefilter_LargePolicyStillCorrect(t *testing.T) {
	var exact []string
	for i := 0; i < 200; i++ {
		exact = append(exact, "xdomain"+strings.Repeat(string(rune('a'+i%26)), 1+i/26)+".example.com")
	}
	p := NewPolicy(exact, []string{"wild.example.com"})
	require.Greater(t, p.Count(), bloomThreshold)

	for _, d := range exact {
		assert.True(t, p.IsBlocked(d))
	}
	assert.True(t, p.IsBlocked("sub.wild.example.com"))
	assert.False(t, p.IsBlocked("never-added.example.com"))
}
