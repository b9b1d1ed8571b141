package logging

import (
	"testing"

	"go.viam.com/test"
)

func TestValidatePattern(t *testing.T) {
	t.Parallel()

	tests := []struct {
		pattern string
		isValid bool
	}{
		{"armsim.loop", true},
		{"armsim.loop.*", true},
		{"armsim.*.ik", true},
		{"*.ik", true},
		{"*", true},

		{"armsim..loop", false},
		{"armsim.loop.", false},
		{".armsim.loop", false},
		{"armsim.**", false},
		{"_.armsim", false},
		{"armsim.-", false},
	}

	for _, tc := range tests {
		t.Run(tc.pattern, func(t *testing.T) {
			t.Parallel()
			test.That(t, ValidatePattern(tc.pattern), test.ShouldEqual, tc.isValid)
		})
	}

	test.That(t, LoggerPatternConfig{Pattern: "armsim.*", Level: "warn"}.Validate(), test.ShouldBeNil)
	test.That(t, LoggerPatternConfig{Pattern: "armsim.*", Level: "loud"}.Validate(), test.ShouldNotBeNil)
	test.That(t, LoggerPatternConfig{Pattern: "armsim..", Level: "warn"}.Validate(), test.ShouldNotBeNil)
}

func TestRegistryUpdate(t *testing.T) {
	tests := []struct {
		name            string
		loggerConfig    []LoggerPatternConfig
		loggerNames     []string
		expectedMatches map[string]Level
	}{
		{
			name:         "exact",
			loggerConfig: []LoggerPatternConfig{{Pattern: "armsim.loop", Level: "WARN"}},
			loggerNames:  []string{"armsim.loop", "armsim.loop.source", "armsim.ik"},
			expectedMatches: map[string]Level{
				"armsim.loop":        WARN,
				"armsim.loop.source": INFO,
				"armsim.ik":          INFO,
			},
		},
		{
			name:         "wildcard",
			loggerConfig: []LoggerPatternConfig{{Pattern: "armsim.*", Level: "DEBUG"}},
			loggerNames:  []string{"armsim.loop", "armsim.robot.ik"},
			expectedMatches: map[string]Level{
				"armsim.loop":     DEBUG,
				"armsim.robot.ik": DEBUG,
			},
		},
		{
			name: "last match wins",
			loggerConfig: []LoggerPatternConfig{
				{Pattern: "armsim.*", Level: "DEBUG"},
				{Pattern: "armsim.loop", Level: "ERROR"},
			},
			loggerNames: []string{"armsim.loop"},
			expectedMatches: map[string]Level{
				"armsim.loop": ERROR,
			},
		},
		{
			name:         "invalid pattern skipped",
			loggerConfig: []LoggerPatternConfig{{Pattern: "_.*.ik", Level: "DEBUG"}},
			loggerNames:  []string{"armsim.ik"},
			expectedMatches: map[string]Level{
				"armsim.ik": INFO,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			registry := NewRegistry(INFO)
			for _, name := range tc.loggerNames {
				registry.Register(NewLogger(name))
			}
			test.That(t, registry.Update(INFO, tc.loggerConfig, NewTestLogger(t)), test.ShouldBeNil)
			for name, level := range tc.expectedMatches {
				logger, ok := registry.LoggerNamed(name)
				test.That(t, ok, test.ShouldBeTrue)
				test.That(t, logger.GetLevel(), test.ShouldEqual, level)
			}
		})
	}
}

func TestRegistrySubloggers(t *testing.T) {
	registry := NewRegistry(INFO)
	err := registry.Update(WARN, []LoggerPatternConfig{{Pattern: "armsim.loop", Level: "debug"}}, NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	root := registry.Register(NewBlankLogger("armsim"))
	test.That(t, root.GetLevel(), test.ShouldEqual, WARN)

	loop := root.Sublogger("loop")
	test.That(t, loop.GetLevel(), test.ShouldEqual, DEBUG)
	test.That(t, root.Sublogger("loop"), test.ShouldEqual, loop)
	ik := loop.Sublogger("ik")
	test.That(t, ik.GetLevel(), test.ShouldEqual, WARN)
	test.That(t, registry.RegisteredNames(), test.ShouldResemble, []string{"armsim", "armsim.loop", "armsim.loop.ik"})

	// an existing name returns the registered logger
	test.That(t, registry.Register(NewBlankLogger("armsim")), test.ShouldEqual, root)

	test.That(t, registry.Update(ERROR, nil, NewTestLogger(t)), test.ShouldBeNil)
	for _, name := range registry.RegisteredNames() {
		logger, ok := registry.LoggerNamed(name)
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, logger.GetLevel(), test.ShouldEqual, ERROR)
	}

	test.That(t, registry.Deregister("armsim.loop.ik"), test.ShouldBeTrue)
	test.That(t, registry.Deregister("armsim.loop.ik"), test.ShouldBeFalse)
	_, ok := registry.LoggerNamed("armsim.loop.ik")
	test.That(t, ok, test.ShouldBeFalse)
}
