package scene

var NewClockFrom = newClock
