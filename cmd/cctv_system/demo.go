package main

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/OCAP2/cctv/internal/dispatcher"
	"github.com/OCAP2/cctv/internal/replication"
)

// consoleCallback prints callbacks instead of raising them in the game, and
// acknowledges sync updates the way the game's handler would.
func consoleCallback(name, function, data string) error {
	fmt.Printf("[%s] %s %s\n", name, function, data)
	if function != replication.SyncFunction {
		return nil
	}
	var u replication.Update
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		return fmt.Errorf("demo ack: %w", err)
	}
	acks.Ack(u.Topic, u.Key, u.Version)
	return nil
}

func dispatchDemoEvent(command string, args ...string) (any, error) {
	res, err := eventDispatcher.Dispatch(dispatcher.Event{
		Command:   command,
		Args:      args,
		Timestamp: time.Now(),
	})
	if err != nil {
		Logger.Error("Demo command failed", "command", command, "error", err)
	} else {
		Logger.Info("Demo command", "command", command, "result", res)
	}
	return res, err
}

// runDemo plays a short mission: a few screens and cameras, a gunner's vehicle,
// and a handful of random viewing changes.
func runDemo() error {
	const (
		screens = 3
		cameras = 6
		viewers = 4
	)

	if _, err := dispatchDemoEvent(":CCTV:MISSION:",
		`{"worldName":"Altis","displayName":"Altis","worldSize":30720}`,
		`{"missionName":"CCTV Demo","briefingName":"CCTV Demo","author":"cctv_system"}`,
	); err != nil {
		return err
	}
	if _, err := dispatchDemoEvent(":CCTV:INIT:", "true", "true"); err != nil {
		return err
	}

	screenRefs := make([]string, screens)
	for i := range screenRefs {
		screenRefs[i] = fmt.Sprintf(`"2:%d"`, 100+i)
	}
	cameraRefs := make([]string, cameras)
	positions := make([]string, cameras)
	for i := range cameraRefs {
		cameraRefs[i] = fmt.Sprintf(`"2:%d"`, 200+i)
		positions[i] = fmt.Sprintf("[%.1f,%.1f,%.1f]", 14000+rand.Float64()*500, 16000+rand.Float64()*500, 4+rand.Float64()*6)
	}

	if _, err := dispatchDemoEvent(":CCTV:SCREEN:INIT:", "ANY", "false", sqfArray(screenRefs)); err != nil {
		return err
	}
	if _, err := dispatchDemoEvent(":CCTV:CAMERA:INIT:", "ANY", "Perimeter", sqfArray(cameraRefs), sqfArray(positions)); err != nil {
		return err
	}

	if _, err := dispatchDemoEvent(":CCTV:VEHICLE:DEFINE:", "B_MRAP_01_hmg_F", "Hunter HMG", `[[[0],"Gunner"]]`); err != nil {
		return err
	}
	if _, err := dispatchDemoEvent(":CCTV:VEHICLE:ENUMERATE:", "2:300", "B_MRAP_01_hmg_F"); err != nil {
		return err
	}

	for v := range viewers {
		ref := fmt.Sprintf("2:%d", 10+v)
		if _, err := dispatchDemoEvent(":CCTV:ENTITY:UPDATE:", ref, "Viewer "+strconv.Itoa(v+1), "WEST", "true", "true", "B_Soldier_F", `["H_HelmetSpecB"]`); err != nil {
			return err
		}
	}

	for i := range 10 {
		viewer := fmt.Sprintf("2:%d", 10+rand.Intn(viewers))
		screen := fmt.Sprintf("2:%d", 100+rand.Intn(screens))
		if _, err := dispatchDemoEvent(":CCTV:MENU:", viewer, "WEST", "false", screen); err != nil {
			continue
		}
		action := "view_" + strconv.Itoa(1+rand.Intn(cameras))
		if i%4 == 3 {
			action = "power_off"
		}
		_, _ = dispatchDemoEvent(":CCTV:ACTION:", viewer, action)
		time.Sleep(50 * time.Millisecond)
	}

	_, _ = dispatchDemoEvent(":CCTV:HELMET:TOGGLE:", "2:10")
	_, _ = dispatchDemoEvent(":CCTV:ENTITY:KILLED:", "2:200")
	_, _ = dispatchDemoEvent(":CCTV:CAMERAS:", "WEST")

	if monitorService != nil {
		if u, ok := monitorService.Sample(); ok {
			Logger.Info("Demo usage", "cameras", u.Cameras, "viewing", u.ViewingScreens, "helmets", u.ActiveHelmets)
		}
	}

	_, err := dispatchDemoEvent(":CCTV:END:")
	return err
}

func sqfArray(items []string) string {
	b := []byte{'['}
	for i, it := range items {
		if i > 0 {
			b = append(b, ',')
		}
		b = append(b, it...)
	}
	return string(append(b, ']'))
}
