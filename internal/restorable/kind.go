package restorable

import (
	"fmt"
	"strings"
)

// Kind тег варианта восстанавливаемого компонента.
// По тегу движок решает, в какой пул попадает запись и кто её может принять.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindBlank        // статичный объект, всегда присутствует в сцене
	KindDynamic      // локальный объект сцены, может создаваться из шаблона
	KindMotile       // переходит между сценами, хранится в глобальном пуле
	KindPlayer       // игрок, единственный на процесс
)

var kindNames = map[Kind]string{
	KindUnknown: "unknown",
	KindBlank:   "blank",
	KindDynamic: "dynamic",
	KindMotile:  "motile",
	KindPlayer:  "player",
}

// String возвращает строковое представление тега
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// ParseKind разбирает тег из строки. "local" принимается как синоним "dynamic".
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "blank", "static":
		return KindBlank, nil
	case "dynamic", "local":
		return KindDynamic, nil
	case "motile":
		return KindMotile, nil
	case "player":
		return KindPlayer, nil
	case "", "none":
		return KindUnknown, nil
	default:
		return KindUnknown, fmt.Errorf("неизвестный тип восстанавливаемого объекта %q", s)
	}
}

// Valid сообщает, что тег один из четырёх известных вариантов
func (k Kind) Valid() bool {
	return k >= KindBlank && k <= KindPlayer
}

// Local сообщает, что записи этого варианта живут в локальном пуле сцены
func (k Kind) Local() bool {
	return k == KindBlank || k == KindDynamic
}

// MarshalText сериализует тег в строку (JSON/YAML)
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText разбирает тег из строки
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
