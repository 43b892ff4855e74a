package vec

import "math"

// Quat представляет поворот в виде кватерниона
type Quat struct {
	X float64 `json:"x" yaml:"x" bson:"x"`
	Y float64 `json:"y" yaml:"y" bson:"y"`
	Z float64 `json:"z" yaml:"z" bson:"z"`
	W float64 `json:"w" yaml:"w" bson:"w"`
}

// IdentityQuat поворот "без поворота"
var IdentityQuat = Quat{W: 1}

// YawQuat строит поворот вокруг вертикальной оси на угол в градусах
func YawQuat(degrees float64) Quat {
	half := degrees * math.Pi / 360
	return Quat{Y: math.Sin(half), W: math.Cos(half)}
}

// IsZero сообщает, что кватернион не задан (все компоненты нулевые)
func (q Quat) IsZero() bool {
	return q == Quat{}
}

// Transform положение, поворот и масштаб объекта сцены
type Transform struct {
	Position Vec3 `json:"position" yaml:"position" bson:"position"`
	Rotation Quat `json:"rotation" yaml:"rotation" bson:"rotation"`
	Scale    Vec3 `json:"scale" yaml:"scale" bson:"scale"`
}

// NewTransform создаёт трансформ с единичным масштабом и без поворота
func NewTransform(position Vec3) Transform {
	return Transform{Position: position, Rotation: IdentityQuat, Scale: One}
}

// Normalized заполняет незаданные поворот и масштаб значениями по умолчанию.
// Нужен для трансформов, прочитанных из YAML, где поля часто опущены.
func (t Transform) Normalized() Transform {
	if t.Rotation.IsZero() {
		t.Rotation = IdentityQuat
	}
	if t.Scale == Zero {
		t.Scale = One
	}
	return t
}
