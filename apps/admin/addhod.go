package main

import "context"

// addHOD promotes an existing user to head of department; the HOD dashboard and broadcasts need the profile.
func (cli *commandLine) addHOD(uname, department string) error {
	_, err := cli.academicSvc.PromoteHOD(context.Background(), uname, department)
	return err
}
