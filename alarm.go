package cubealarm

// Sounder is the alarm actuator: a buzzer, a media player, anything that can
// make noise and be told to stop. The monitor starts it on TriggerAlarm (or
// when the session becomes ready, with WithAlarmOnConnect) and stops it when
// the cube is solved. When the alarm is due is the caller's schedule.
//
// Both methods must be safe to call from the monitor goroutine and must not
// block; a Sounder owns whatever goroutine does the actual playback.
type Sounder interface {
	Start()
	Stop()
}
