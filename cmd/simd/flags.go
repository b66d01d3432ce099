package main

import (
	"strconv"
	"strings"

	"gitlab.com/NebulousLabs/errors"

	"github.com/fomy/simd/config"
)

// errBadDistArg is returned when a -F/-R/-L/-S distribution argument isn't
// a parenthesized, comma-separated list of 1-3 floats.
var errBadDistArg = errors.New("distribution argument must look like \"(scale)\", \"(shape, scale)\", or \"(shape, scale, location)\"")

// parseWeibullArg parses the original tool's distribution-tuple flag
// syntax: "(scale)" (shape=1, location=0), "(shape, scale)" (location=0), or
// "(shape, scale, location)".
func parseWeibullArg(arg string) (config.WeibullParams, error) {
	fields, err := splitDistArg(arg)
	if err != nil {
		return config.WeibullParams{}, err
	}
	switch len(fields) {
	case 1:
		return config.WeibullParams{Shape: 1, Scale: fields[0], Location: 0}, nil
	case 2:
		return config.WeibullParams{Shape: fields[0], Scale: fields[1], Location: 0}, nil
	case 3:
		return config.WeibullParams{Shape: fields[0], Scale: fields[1], Location: fields[2]}, nil
	default:
		return config.WeibullParams{}, errBadDistArg
	}
}

// parseRateArg parses the LSE distribution flag, a single scalar rate,
// optionally wrapped the same way as the Weibull tuples: "(rate)" or a bare
// number.
func parseRateArg(arg string) (float64, error) {
	fields, err := splitDistArg(arg)
	if err != nil {
		return 0, err
	}
	if len(fields) != 1 {
		return 0, errBadDistArg
	}
	return fields[0], nil
}

func splitDistArg(arg string) ([]float64, error) {
	arg = strings.TrimSpace(arg)
	arg = strings.TrimPrefix(arg, "(")
	arg = strings.TrimSuffix(arg, ")")
	if arg == "" {
		return nil, errBadDistArg
	}
	parts := strings.Split(arg, ",")
	fields := make([]float64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, errors.AddContext(errBadDistArg, err.Error())
		}
		fields[i] = v
	}
	return fields, nil
}
