package syncache

import (
	"time"

	"github.com/cockroachdb/errors"
	str2duration "github.com/xhit/go-str2duration/v2"
	"gopkg.in/yaml.v3"
)

// Class names a staleness/retention profile shared by many keys. Callers
// tag each query with a class instead of repeating raw durations at every
// call site.
type Class string

const (
	// ClassVolatile is for data that changes often (attendance, schedules
	// during rehearsal season). Short staleness window, aggressive refetch.
	ClassVolatile Class = "volatile"
	// ClassModerate is the default profile for entity records that change
	// through normal editing (teachers, students, orchestras).
	ClassModerate Class = "moderate"
	// ClassStatic is for reference data that effectively never changes
	// within a session (instrument lists, syllabus definitions).
	ClassStatic Class = "static"
)

// Policy holds the concrete freshness parameters resolved from a Class.
// A Policy is bound to an entry when the entry is created and is immutable
// for the entry's lifetime; changing a class's policy affects new entries
// only.
type Policy struct {
	// StaleTime is how long after a successful fetch the data is
	// considered fresh. Once exceeded the entry is stale: still served,
	// but due for revalidation.
	StaleTime time.Duration
	// RetentionTime is how long an entry with no subscribers is kept
	// before the garbage collector removes it.
	RetentionTime time.Duration

	RefetchOnFocus     bool
	RefetchOnReconnect bool
	RefetchOnMount     bool
}

// Resolver maps classes to policies. The zero value is unusable; construct
// with NewResolver, which registers the built-in classes, then optionally
// Register or LoadClasses before handing the resolver to New.
type Resolver struct {
	classes map[Class]Policy
}

func NewResolver() *Resolver {
	return &Resolver{
		classes: map[Class]Policy{
			ClassVolatile: {
				StaleTime:          30 * time.Second,
				RetentionTime:      5 * time.Minute,
				RefetchOnFocus:     true,
				RefetchOnReconnect: true,
				RefetchOnMount:     true,
			},
			ClassModerate: {
				StaleTime:          5 * time.Minute,
				RetentionTime:      30 * time.Minute,
				RefetchOnFocus:     true,
				RefetchOnReconnect: true,
			},
			ClassStatic: {
				StaleTime:     6 * time.Hour,
				RetentionTime: 24 * time.Hour,
			},
		},
	}
}

// Register adds or replaces a class. Not safe to call once the resolver is
// in use by a Client.
func (r *Resolver) Register(class Class, policy Policy) {
	r.classes[class] = policy
}

// Resolve returns the policy for class, or ErrUnknownClass. Callers must
// pass a registered class; there is no implicit default.
func (r *Resolver) Resolve(class Class) (Policy, error) {
	policy, ok := r.classes[class]
	if !ok {
		return Policy{}, errors.Wrapf(ErrUnknownClass, "%q", class)
	}
	return policy, nil
}

type policySpec struct {
	StaleTime          string `yaml:"stale_time"`
	RetentionTime      string `yaml:"retention_time"`
	RefetchOnFocus     bool   `yaml:"refetch_on_focus"`
	RefetchOnReconnect bool   `yaml:"refetch_on_reconnect"`
	RefetchOnMount     bool   `yaml:"refetch_on_mount"`
}

type policyFile struct {
	Classes map[string]policySpec `yaml:"classes"`
}

// LoadClasses merges class definitions from a YAML document into the
// resolver, overriding built-ins of the same name. Durations accept the
// extended syntax of str2duration ("90s", "5m", "1d12h").
//
//	classes:
//	  volatile:
//	    stale_time: 10s
//	    retention_time: 2m
//	    refetch_on_focus: true
func (r *Resolver) LoadClasses(data []byte) error {
	var file policyFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return errors.Wrap(err, "syncache: parsing policy classes")
	}
	for name, spec := range file.Classes {
		staleTime, err := str2duration.ParseDuration(spec.StaleTime)
		if err != nil {
			return errors.Wrapf(err, "syncache: class %q stale_time", name)
		}
		retentionTime, err := str2duration.ParseDuration(spec.RetentionTime)
		if err != nil {
			return errors.Wrapf(err, "syncache: class %q retention_time", name)
		}
		r.classes[Class(name)] = Policy{
			StaleTime:          staleTime,
			RetentionTime:      retentionTime,
			RefetchOnFocus:     spec.RefetchOnFocus,
			RefetchOnReconnect: spec.RefetchOnReconnect,
			RefetchOnMount:     spec.RefetchOnMount,
		}
	}
	return nil
}
