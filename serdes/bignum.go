// Datalith - Typed Go Client for the Data API and DevOps API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/datalith

/*
bignum.go - numeric decode policy

Wire numbers arrive as raw tokens (json.Number) so nothing is rounded before a
policy decides its fate. The policy is configured per path; the most specific
matching rule wins, the "" rule covers the whole record, and the default is
plain float64 decoding.
*/

package serdes

import (
	"fmt"
	"strings"

	json "github.com/goccy/go-json"
	"github.com/shopspring/decimal"

	"github.com/tomtom215/datalith/datatypes"
	"github.com/tomtom215/datalith/options"
)

type bigNumRule struct {
	pattern []string
	policy  options.BigNumbersPolicy
}

type bigNumResolver struct {
	rules   []bigNumRule
	root    options.BigNumbersPolicy
	hasRoot bool
}

func newBigNumResolver(m map[string]options.BigNumbersPolicy) *bigNumResolver {
	r := &bigNumResolver{}
	for path, policy := range m {
		if path == "" {
			r.root = policy
			r.hasRoot = true
			continue
		}
		r.rules = append(r.rules, bigNumRule{pattern: strings.Split(path, "."), policy: policy})
	}
	return r
}

// policyFor resolves the rule for a path. Exact-segment rules beat wildcard
// rules of the same length; the root rule is the fallback.
func (r *bigNumResolver) policyFor(path []string) options.BigNumbersPolicy {
	best := options.BigNumbersPolicy("")
	bestWildcards := -1
	for _, rule := range r.rules {
		if len(rule.pattern) != len(path) || !pathMatches(rule.pattern, path) {
			continue
		}
		wild := 0
		for _, seg := range rule.pattern {
			if seg == "*" {
				wild++
			}
		}
		if bestWildcards == -1 || wild < bestWildcards {
			best = rule.policy
			bestWildcards = wild
		}
	}
	if best != "" {
		return best
	}
	if r.hasRoot {
		return r.root
	}
	return options.BigNumbersNever
}

// convert decodes one numeric token under the path's policy.
func (r *bigNumResolver) convert(path []string, n json.Number) (any, error) {
	switch r.policyFor(path) {
	case options.BigNumbersAlwaysInt:
		i, err := n.Int64()
		if err != nil {
			return nil, fmt.Errorf("value %s does not fit an int64", n)
		}
		return i, nil
	case options.BigNumbersAlwaysDecimal:
		bn, err := datatypes.ParseBigNumber(n.String())
		if err != nil {
			return nil, err
		}
		return bn, nil
	case options.BigNumbersWhenLossy:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, ferr := n.Float64()
		d, derr := decimal.NewFromString(n.String())
		if ferr == nil && derr == nil && decimal.NewFromFloat(f).Equal(d) {
			return f, nil
		}
		bn, err := datatypes.ParseBigNumber(n.String())
		if err != nil {
			return nil, err
		}
		return bn, nil
	default: // never
		f, err := n.Float64()
		if err != nil {
			return nil, fmt.Errorf("value %s is not representable as float64", n)
		}
		return f, nil
	}
}

// numericCodecs handle arbitrary-precision values in both directions: domain
// big numbers serialize to raw tokens (and flag the envelope), raw tokens
// deserialize under the configured policy.
func numericCodecs() []Codec {
	return []Codec{
		ForClassOf[datatypes.BigNumber](Impl{Serialize: func(ctx *Context, v any) CodecResult {
			ctx.MarkBigNumbers()
			return Replace(json.Number(v.(datatypes.BigNumber).String()))
		}}),
		ForClassOf[decimal.Decimal](Impl{Serialize: func(ctx *Context, v any) CodecResult {
			ctx.MarkBigNumbers()
			return Replace(json.Number(v.(decimal.Decimal).String()))
		}}),
		ForGuard(func(v any) bool {
			_, ok := v.(json.Number)
			return ok
		}, Impl{Serialize: func(ctx *Context, v any) CodecResult {
			ctx.MarkBigNumbers()
			return Done()
		}}),
	}
}
