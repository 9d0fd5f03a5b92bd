package model

// Itoa is a minimal int-to-string converter used on hot paths (candle
// keys, indicator cache keys) to avoid strconv's interface overhead.
func Itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	neg := n < 0
	if neg {
		n = -n
	}
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// SeriesKey builds the "symbol:tf" key that identifies one candle
// stream. The live engine, fan-out and caches all key on it.
func SeriesKey(symbol string, tf int) string {
	return symbol + ":" + Itoa(tf)
}
