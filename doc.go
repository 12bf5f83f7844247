// Package pointmap normalizes free-form Building Management System point
// names into schema-checked EnOS point identifiers.
//
// # Problem
//
// BMS integrators export points with site-specific names like
// "CH-SYS-1.CWP.VSD.Hz". EnOS ingestion needs identifiers from a closed
// grammar, like "PUMP_raw_frequency". The mapping is semantic, not
// syntactic: no fixed rule set covers every site's naming habits, so the
// engine combines a semantic oracle (an LLM, treated as untrusted), a
// deterministic grammar validator, a persistent mapping memory that learns
// from outcomes, and a fallback ladder that always terminates in a valid
// identifier.
//
// # Architecture
//
//	┌─────────────────────────────────────┐
//	│        Mapping Orchestrator         │  engine: state machine,
//	│  (memory → oracle → validate →      │  batch runner, sampling
//	│   reflect → fallback → record)      │
//	└─────────────────────────────────────┘
//	      ↓ consults                ↓ records
//	┌──────────────┐  ┌──────────────────────────┐
//	│    oracle    │  │   memory (sqlite)        │  learned mappings,
//	│  (injected)  │  │   strategy counters      │  confidence tracking
//	└──────────────┘  └──────────────────────────┘
//	      ↓ checked by
//	┌─────────────────────────────────────┐
//	│   schema validator + pattern        │  closed grammar, canonical
//	│   extractor (deterministic)         │  tokens, measurement rules
//	└─────────────────────────────────────┘
//
// The orchestrator's core invariant is total coverage: MapPoint never
// returns an invalid or empty identifier. Oracle output is never trusted
// without validation, oracle failures degrade through learned patterns to
// minimal construction, and every decision is recorded so the memory
// reduces future oracle calls.
//
// # Packages
//
//   - engine: the orchestrator (MapPoint, MapBatch)
//   - schema: the EnOS identifier grammar and prefix tables
//   - pattern: canonical token extraction and measurement inference
//   - memory: the sqlite-backed mapping memory
//   - quality: per-mapping quality assessment
//   - strategy: success-rate-ordered strategy selection
//   - oracle: the oracle interface, context builders, and test stub
//   - groupcache: fingerprint-keyed TTL cache of batch groupings
//   - config: YAML configuration with environment overrides
package pointmap
