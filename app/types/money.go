// SPDX-FileCopyrightText: Copyright (c) 2024-2026, CostPlane, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package types

import (
	"fmt"
	"math"
	"strings"
)

// currencyExponents lists ISO 4217 minor-unit exponents that differ from the
// default of 2. Everything else (USD, EUR, GBP, ...) uses cents.
var currencyExponents = map[string]int{
	"JPY": 0,
	"KRW": 0,
	"VND": 0,
	"BHD": 3,
	"KWD": 3,
	"OMR": 3,
}

// CurrencyExponent returns the number of minor-unit digits for an ISO
// currency code.
func CurrencyExponent(currency string) int {
	if exp, ok := currencyExponents[strings.ToUpper(currency)]; ok {
		return exp
	}
	return 2
}

// MinorPerMajor returns the number of minor units in one major unit.
func MinorPerMajor(currency string) int64 {
	n := int64(1)
	for i := 0; i < CurrencyExponent(currency); i++ {
		n *= 10
	}
	return n
}

// MajorString renders a minor-unit amount in major units for export, e.g.
// 12345 USD -> "123.45". Exports never carry minor units.
func MajorString(minor int64, currency string) string {
	exp := CurrencyExponent(currency)
	if exp == 0 {
		return fmt.Sprintf("%d", minor)
	}
	per := MinorPerMajor(currency)
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%0*d", sign, minor/per, exp, minor%per)
}

// ConvertMinor converts a minor-unit amount between currencies at the given
// major-unit rate, rounding half away from zero. Exponent differences between
// the currencies are accounted for.
func ConvertMinor(minor int64, from, to string, rate float64) int64 {
	if strings.EqualFold(from, to) {
		return minor
	}
	major := float64(minor) / float64(MinorPerMajor(from))
	return int64(math.Round(major * rate * float64(MinorPerMajor(to))))
}
