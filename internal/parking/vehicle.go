package parking

import (
	"fmt"
	"math"
	"strings"
)

type VehicleClass int

const (
	Motorcycle VehicleClass = iota + 1
	Car
	Truck
)

func (c VehicleClass) String() string {
	switch c {
	case Motorcycle:
		return "motorcycle"
	case Car:
		return "car"
	case Truck:
		return "truck"
	default:
		return "unknown"
	}
}

func (c VehicleClass) valid() bool {
	return c >= Motorcycle && c <= Truck
}

func ParseVehicleClass(s string) (VehicleClass, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "motorcycle", "moto", "bike":
		return Motorcycle, nil
	case "car":
		return Car, nil
	case "truck":
		return Truck, nil
	default:
		return 0, fmt.Errorf("%w: unknown vehicle class %q", ErrInvalidAttribute, s)
	}
}

const (
	motorcycleRate       = 1.0
	sidecarMultiplier    = 1.5
	carRate              = 2.0
	truckBaseRate        = 3.0
	truckWeightThreshold = 2.0
	truckWeightSurcharge = 5.0
	maxTruckWeightTons   = 50.0
)

// Details are the descriptive attributes shared by every vehicle class.
type Details struct {
	Color string
	Brand string
	Model string
	Year  int
}

// Vehicle is a closed variant over VehicleClass. Class specific fields are
// only meaningful for their class: HasSidecar for motorcycles, WeightTons for
// trucks.
type Vehicle struct {
	Details

	plate      string
	class      VehicleClass
	hasSidecar bool
	weightTons float64
}

// NormalizePlate trims and upper-cases a license plate.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

func newVehicle(plate string, class VehicleClass, details Details) (*Vehicle, error) {
	normalized := NormalizePlate(plate)
	if normalized == "" {
		return nil, fmt.Errorf("%w: license plate cannot be empty", ErrInvalidAttribute)
	}
	return &Vehicle{
		Details: details,
		plate:   normalized,
		class:   class,
	}, nil
}

func NewMotorcycle(plate string, details Details, hasSidecar bool) (*Vehicle, error) {
	v, err := newVehicle(plate, Motorcycle, details)
	if err != nil {
		return nil, err
	}
	v.hasSidecar = hasSidecar
	return v, nil
}

func NewCar(plate string, details Details) (*Vehicle, error) {
	return newVehicle(plate, Car, details)
}

// NewTruck fails with ErrInvalidAttribute unless weightTons is in (0, 50].
func NewTruck(plate string, details Details, weightTons float64) (*Vehicle, error) {
	if math.IsNaN(weightTons) || weightTons <= 0 || weightTons > maxTruckWeightTons {
		return nil, fmt.Errorf("%w: truck weight %.2f tons outside (0, %.0f]",
			ErrInvalidAttribute, weightTons, maxTruckWeightTons)
	}
	v, err := newVehicle(plate, Truck, details)
	if err != nil {
		return nil, err
	}
	v.weightTons = weightTons
	return v, nil
}

func (v *Vehicle) Plate() string       { return v.plate }
func (v *Vehicle) Class() VehicleClass { return v.class }
func (v *Vehicle) HasSidecar() bool    { return v.hasSidecar }
func (v *Vehicle) WeightTons() float64 { return v.weightTons }

// HourlyRate is zero for a vehicle without a known class.
func (v *Vehicle) HourlyRate() float64 {
	switch v.class {
	case Motorcycle:
		if v.hasSidecar {
			return motorcycleRate * sidecarMultiplier
		}
		return motorcycleRate
	case Car:
		return carRate
	case Truck:
		rate := truckBaseRate
		if v.weightTons > truckWeightThreshold {
			rate += (v.weightTons - truckWeightThreshold) * truckWeightSurcharge
		}
		return rate
	default:
		return 0
	}
}

// Fee bills whole hours at the hourly rate, rounded to cents.
func (v *Vehicle) Fee(hours int) (float64, error) {
	if hours < 0 {
		return 0, fmt.Errorf("%w: hours must be non-negative, got %d", ErrInvalidArgument, hours)
	}
	if !v.class.valid() {
		return 0, fmt.Errorf("%w: unknown vehicle class %d", ErrInvalidAttribute, v.class)
	}
	return roundCents(float64(hours) * v.HourlyRate()), nil
}

func (v *Vehicle) String() string {
	return fmt.Sprintf("%s [%s %s, %s, %s, %d, rate %.2f/hr]",
		v.class, v.Brand, v.Model, v.plate, v.Color, v.Year, v.HourlyRate())
}

func roundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
