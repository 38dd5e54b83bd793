package did

import "fmt"

// alphabet is the Bitcoin base58 alphabet used by multibase 'z' encoding.
// It omits 0, O, I, and l to avoid visual ambiguity.
const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// decodeTable maps an ASCII byte to its alphabet index, or -1.
var decodeTable [256]int8

func init() {
	for i := range decodeTable {
		decodeTable[i] = -1
	}
	for i := 0; i < len(alphabet); i++ {
		decodeTable[alphabet[i]] = int8(i)
	}
}

// base58Encode encodes bytes as base58btc. Leading zero bytes are preserved
// as leading '1' characters.
func base58Encode(input []byte) string {
	if len(input) == 0 {
		return ""
	}

	zeros := 0
	for zeros < len(input) && input[zeros] == 0 {
		zeros++
	}

	// base58 expands by log(256)/log(58) ≈ 1.37.
	buf := make([]byte, len(input)*138/100+1)

	length := 0
	for _, b := range input {
		carry := int(b)
		for i := 0; i < length || carry != 0; i++ {
			if i < length {
				carry += 256 * int(buf[i])
			}
			buf[i] = byte(carry % 58)
			carry /= 58
			if i >= length {
				length = i + 1
			}
		}
	}

	out := make([]byte, zeros+length)
	for i := 0; i < zeros; i++ {
		out[i] = '1'
	}
	for i := 0; i < length; i++ {
		out[zeros+i] = alphabet[buf[length-1-i]]
	}
	return string(out)
}

// base58Decode decodes a base58btc string. Leading '1' characters are
// restored as leading zero bytes.
func base58Decode(input string) ([]byte, error) {
	if len(input) == 0 {
		return nil, nil
	}

	zeros := 0
	for zeros < len(input) && input[zeros] == '1' {
		zeros++
	}

	// Each base58 digit carries slightly under one byte of information.
	buf := make([]byte, len(input)*733/1000+1)

	length := 0
	for i := 0; i < len(input); i++ {
		v := decodeTable[input[i]]
		if v < 0 {
			return nil, fmt.Errorf("invalid base58 character %q", input[i])
		}

		carry := int(v)
		for j := 0; j < length || carry != 0; j++ {
			if j < length {
				carry += 58 * int(buf[j])
			}
			buf[j] = byte(carry % 256)
			carry /= 256
			if j >= length {
				length = j + 1
			}
		}
	}

	out := make([]byte, zeros+length)
	for i := 0; i < length; i++ {
		out[zeros+i] = buf[length-1-i]
	}
	return out, nil
}
