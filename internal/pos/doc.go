// Package pos provides the domain types shared by the posync packages.
//
// This package contains record types, validation, and the error taxonomy.
// All other internal packages import pos; pos imports nothing internal.
//
// Key design constraints:
//   - NO float types in records - rates, weights, and totals use decimal.Decimal
//   - Sale totals are computed once at write time (rate × kilos), never on read
//   - All JSON tags use snake_case
//   - Calendar dates are YYYY-MM-DD strings, never time.Time
package pos
